package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// validate is stateless and safe for concurrent use; one instance per
// process is the documented usage pattern for go-playground/validator.
var validate = validator.New()

// chatRequestBody is the JSON body accepted by POST /api/chat. UserID and
// Tier come from headers, not the body — see handleChat.
type chatRequestBody struct {
	Message              string `json:"message"`
	ConversationID       int64  `json:"conversationId"`
	ExtendedResponses    bool   `json:"extendedResponses"`
	IsSuggestionFollowup bool   `json:"isSuggestionFollowup"`
	RequestID            string `json:"requestId"`
	RequestChart         bool   `json:"requestChart"`
	RequestForecast      bool   `json:"requestForecast"`
}

// handleChat is the sole HTTP entry point onto orchestrator.Chat (spec.md
// §6). The caller's own auth layer is responsible for having already
// verified the user behind X-User-Id; this handler only parses it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "missing or invalid X-User-Id header")
		return
	}
	tier := r.Header.Get("X-User-Tier")
	if tier == "" {
		respondErr(w, http.StatusBadRequest, "missing X-User-Tier header")
		return
	}

	var body chatRequestBody
	if !decode(w, r, &body) {
		return
	}

	req := domain.ChatRequest{
		UserID:               userID,
		Tier:                 tier,
		Message:              body.Message,
		ConversationID:       body.ConversationID,
		ExtendedResponses:    body.ExtendedResponses,
		IsSuggestionFollowup: body.IsSuggestionFollowup,
		RequestID:            body.RequestID,
		RequestChart:         body.RequestChart,
		RequestForecast:      body.RequestForecast,
	}

	if err := validate.Struct(req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	resp, err := s.orc.Chat(r.Context(), req)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, resp)
}

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Callers should return
// immediately on false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
