package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sqlc-dev/pqtype"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// hashContent is the message_hash ConversationStore.ByHash matches against.
// Hashing (rather than comparing content columns directly) keeps the lookup
// index small and collation-independent.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SaveUser inserts a completed user turn. User turns have no metadata and
// are always complete — there is nothing to stream.
func (s *Store) SaveUser(ctx context.Context, convID int64, content, requestID string) (domain.ChatMessage, error) {
	return s.insert(ctx, convID, domain.RoleUser, content, requestID, true, nil)
}

// SaveAI inserts an assistant turn, guarding against a duplicate insert for
// the same (conversation, content) within the same request under
// serializable isolation — two retried deliveries of one request should
// never produce two persisted assistant turns.
func (s *Store) SaveAI(ctx context.Context, convID int64, content, requestID string, meta map[string]any) (domain.ChatMessage, error) {
	var saved domain.ChatMessage

	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		hash := hashContent(content)

		var existingID int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM chat_messages
			WHERE conversation_id = $1 AND message_hash = $2 AND request_id = $3
		`, convID, hash, requestID).Scan(&existingID)
		switch {
		case err == nil:
			row, err := scanMessageTx(ctx, tx, existingID)
			if err != nil {
				return fmt.Errorf("SaveAI: reload existing: %w", err)
			}
			saved = row
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("SaveAI: check existing: %w", err)
		}

		metaJSON, err := encodeMetadata(meta)
		if err != nil {
			return fmt.Errorf("SaveAI: encode metadata: %w", err)
		}

		var id int64
		var createdAt time.Time
		err = tx.QueryRowContext(ctx, `
			INSERT INTO chat_messages
				(conversation_id, role, content, message_hash, request_id, is_complete, metadata)
			VALUES ($1, $2, $3, $4, $5, true, $6)
			RETURNING id, created_at
		`, convID, domain.RoleAssistant, content, hash, requestID, metaJSON).Scan(&id, &createdAt)
		if err != nil {
			return fmt.Errorf("SaveAI: insert: %w", err)
		}

		saved = domain.ChatMessage{
			ID: id, ConversationID: convID, Role: domain.RoleAssistant,
			Content: content, MessageHash: hash, RequestID: requestID,
			IsComplete: true, Metadata: meta, CreatedAt: createdAt,
		}
		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return saved, nil
}

// Update rewrites a previously-saved message's content and completion flag.
// Used when an assistant turn is persisted before its text is fully
// synthesized (streaming) and finalized afterward.
func (s *Store) Update(ctx context.Context, messageID int64, content string, complete bool) error {
	hash := hashContent(content)
	res, err := s.pool.ExecContext(ctx, `
		UPDATE chat_messages
		SET content = $1, message_hash = $2, is_complete = $3
		WHERE id = $4
	`, content, hash, complete, messageID)
	if err != nil {
		return fmt.Errorf("store: update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update message: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: update message: no row with id %d", messageID)
	}
	return nil
}

// ByHash finds the most recent message in convID matching content's hash,
// scoped to userID via a join against the conversations table so one user
// can never dedup against another's transcript.
func (s *Store) ByHash(ctx context.Context, userID, convID int64, content string) (domain.ChatMessage, bool, error) {
	hash := hashContent(content)

	row := s.pool.QueryRowContext(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content, m.message_hash,
		       m.request_id, m.is_complete, m.metadata, m.created_at
		FROM chat_messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = $1 AND m.conversation_id = $2 AND m.message_hash = $3
		ORDER BY m.created_at DESC
		LIMIT 1
	`, userID, convID, hash)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatMessage{}, false, nil
	}
	if err != nil {
		return domain.ChatMessage{}, false, fmt.Errorf("store: by hash: %w", err)
	}
	return msg, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.ChatMessage, error) {
	var (
		msg      domain.ChatMessage
		role     string
		metaJSON pqtype.NullRawMessage
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.MessageHash,
		&msg.RequestID, &msg.IsComplete, &metaJSON, &msg.CreatedAt); err != nil {
		return domain.ChatMessage{}, err
	}
	msg.Role = domain.ChatRole(role)
	meta, err := decodeMetadata(metaJSON)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("decode metadata: %w", err)
	}
	msg.Metadata = meta
	return msg, nil
}

func scanMessageTx(ctx context.Context, tx *sql.Tx, id int64) (domain.ChatMessage, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, conversation_id, role, content, message_hash,
		       request_id, is_complete, metadata, created_at
		FROM chat_messages WHERE id = $1
	`, id)
	return scanMessage(row)
}

func encodeMetadata(meta map[string]any) (pqtype.NullRawMessage, error) {
	if meta == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func decodeMetadata(raw pqtype.NullRawMessage) (map[string]any, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw.RawMessage, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Store) insert(ctx context.Context, convID int64, role domain.ChatRole, content, requestID string, complete bool, meta map[string]any) (domain.ChatMessage, error) {
	hash := hashContent(content)
	metaJSON, err := encodeMetadata(meta)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("store: encode metadata: %w", err)
	}

	var id int64
	var createdAt time.Time
	err = s.pool.QueryRowContext(ctx, `
		INSERT INTO chat_messages
			(conversation_id, role, content, message_hash, request_id, is_complete, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, convID, role, content, hash, requestID, complete, metaJSON).Scan(&id, &createdAt)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("store: insert message: %w", err)
	}

	return domain.ChatMessage{
		ID: id, ConversationID: convID, Role: role, Content: content,
		MessageHash: hash, RequestID: requestID, IsComplete: complete,
		Metadata: meta, CreatedAt: createdAt,
	}, nil
}
