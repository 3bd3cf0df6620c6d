package pool

import (
	"io"
	"log/slog"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

func TestPoolKey_DifferentSecretsProduceDifferentKeys(t *testing.T) {
	a := poolKey(domain.SourcePostgres, "secret-a")
	b := poolKey(domain.SourcePostgres, "secret-b")
	if a == b {
		t.Fatal("expected different secrets to hash to different keys")
	}
}

func TestPoolKey_SameSecretDifferentKindProducesDifferentKeys(t *testing.T) {
	a := poolKey(domain.SourcePostgres, "secret")
	b := poolKey(domain.SourceMySQL, "secret")
	if a == b {
		t.Fatal("expected kind to be part of the key, not just the secret")
	}
}

func TestPoolKey_Deterministic(t *testing.T) {
	a := poolKey(domain.SourcePostgres, "secret")
	b := poolKey(domain.SourcePostgres, "secret")
	if a != b {
		t.Fatal("expected the same (kind, secret) to always hash to the same key")
	}
}

func TestPoolKey_NeverContainsRawSecret(t *testing.T) {
	secret := "super-secret-connection-string"
	key := poolKey(domain.SourcePostgres, secret)
	if key == secret {
		t.Fatal("key must be a hash, never the raw secret")
	}
}

func TestNormalizeMySQLValue_BytesBecomeStrings(t *testing.T) {
	got := normalizeMySQLValue([]byte("42"))
	if got != "42" {
		t.Errorf("expected byte slice normalized to string, got %#v", got)
	}
}

func TestNormalizeMySQLValue_PassesThroughNonBytes(t *testing.T) {
	if got := normalizeMySQLValue(42); got != 42 {
		t.Errorf("expected non-byte values unchanged, got %#v", got)
	}
	if got := normalizeMySQLValue(nil); got != nil {
		t.Errorf("expected nil unchanged, got %#v", got)
	}
}

func TestCloseAll_OnEmptyRegistryDoesNotPanic(t *testing.T) {
	r := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.CloseAll()
}
