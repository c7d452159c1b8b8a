package credstore

import (
	"context"
	"testing"

	"github.com/haasonsaas/surfari-go/internal/resolver"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSecrets(t *testing.T) *resolver.SecretResolver {
	t.Helper()
	secrets, err := resolver.NewSecretResolver([]byte("a-32-byte-test-master-key-value!"))
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	return secrets
}

func TestStorePutThenGetRoundTripsViaResolver(t *testing.T) {
	s := openTestStore(t)
	secrets := testSecrets(t)
	ctx := context.Background()

	if err := s.Put(ctx, secrets, 1, "united", "https://united.com", "alice", "s3cret"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cred, ok, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected a stored credential")
	}

	matches, username, password, err := secrets.ResolveCredential(cred, "https://united.com/login")
	if err != nil {
		t.Fatalf("ResolveCredential: %v", err)
	}
	if !matches {
		t.Fatalf("expected the credential to match a same-site URL")
	}
	if username != "alice" || password != "s3cret" {
		t.Fatalf("expected decrypted alice/s3cret, got %q/%q", username, password)
	}
}

func TestStoreGetMissingReturnsNotOK(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), 99)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected no credential for an unknown site")
	}
}

func TestStorePutOverwritesExistingRow(t *testing.T) {
	s := openTestStore(t)
	secrets := testSecrets(t)
	ctx := context.Background()

	if err := s.Put(ctx, secrets, 1, "united", "https://united.com", "alice", "first"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, secrets, 1, "united", "https://united.com", "alice", "second"); err != nil {
		t.Fatalf("Put (overwrite): %v", err)
	}

	cred, ok, err := s.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get: %v (ok=%v)", err, ok)
	}
	_, _, password, err := secrets.ResolveCredential(cred, "https://united.com")
	if err != nil {
		t.Fatalf("ResolveCredential: %v", err)
	}
	if password != "second" {
		t.Fatalf("expected the overwritten password, got %q", password)
	}
}

func TestStoreDeleteRemovesRow(t *testing.T) {
	s := openTestStore(t)
	secrets := testSecrets(t)
	ctx := context.Background()

	if err := s.Put(ctx, secrets, 1, "united", "https://united.com", "alice", "s3cret"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected no credential after delete")
	}
}
