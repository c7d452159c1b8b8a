package resolver

import (
	"context"
	"testing"
)

func TestSecretResolverEncryptDecryptRoundTrip(t *testing.T) {
	sr, err := NewSecretResolver(testMasterKey())
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	nonce := make([]byte, 12)
	ciphertext, err := sr.Encrypt("hunter2", nonce)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plain, err := sr.decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "hunter2" {
		t.Fatalf("expected hunter2, got %q", plain)
	}
}

func TestSecretResolverWrongKeyFailsDecrypt(t *testing.T) {
	sr, err := NewSecretResolver(testMasterKey())
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	nonce := make([]byte, 12)
	ciphertext, err := sr.Encrypt("hunter2", nonce)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	other, err := NewSecretResolver([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	if _, err := other.decrypt(ciphertext); err == nil {
		t.Fatalf("expected decryption with wrong key to fail")
	}
}

func TestSecretResolverDomainMismatchReturnsFalseNotError(t *testing.T) {
	sr, err := NewSecretResolver(testMasterKey())
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	cred := encryptedCredential(t, sr, "https://example.com", "alice", "hunter2")

	matches, _, _, err := sr.ResolveCredential(cred, "https://evil.example.com")
	if err != nil {
		t.Fatalf("ResolveCredential: %v", err)
	}
	if matches {
		t.Fatalf("expected no match across different registrable domains")
	}
}

func TestSecretResolverSubdomainMatches(t *testing.T) {
	sr, err := NewSecretResolver(testMasterKey())
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	cred := encryptedCredential(t, sr, "https://www.example.com", "alice", "hunter2")

	matches, username, password, err := sr.ResolveCredential(cred, "https://login.example.com/signin")
	if err != nil {
		t.Fatalf("ResolveCredential: %v", err)
	}
	if !matches {
		t.Fatalf("expected subdomains of the same registrable domain to match")
	}
	if username != "alice" || password != "hunter2" {
		t.Fatalf("unexpected decrypted credential: %q / %q", username, password)
	}
}

func TestSecretResolverResolveUnknownPlaceholderFallsThrough(t *testing.T) {
	sr, err := NewSecretResolver(testMasterKey())
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	cred := encryptedCredential(t, sr, "https://example.com", "alice", "hunter2")

	_, ok, err := sr.Resolve(context.Background(), "ShippingAddress", Context{CurrentURL: "https://example.com"}, &cred)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown placeholder to fall through")
	}
}

func TestSecretResolverResolveNilCredentialFallsThrough(t *testing.T) {
	sr, err := NewSecretResolver(testMasterKey())
	if err != nil {
		t.Fatalf("NewSecretResolver: %v", err)
	}
	_, ok, err := sr.Resolve(context.Background(), "UsernameAssistant", Context{CurrentURL: "https://example.com"}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Fatalf("expected nil credential to fall through")
	}
}
