package modelclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

func TestProxyProviderSignsRequest(t *testing.T) {
	const signingKey = "topsecret"
	var gotAuth, gotNonce, gotTimestamp, gotSig string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotNonce = r.Header.Get("X-Signature-Nonce")
		gotTimestamp = r.Header.Get("X-Signature-Timestamp")
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)

		resp := proxyResponseEnvelope{Text: "hello"}
		raw, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}))
	defer server.Close()

	p := NewProxyProvider(server.URL, "bearer-tok", signingKey, "anthropic", "claude-sonnet-4-20250514")
	result, err := p.Complete(context.Background(), Request{
		History: []models.ChatMessage{models.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("Text = %q, want hello", result.Text)
	}

	if gotAuth != "Bearer bearer-tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotNonce == "" || gotTimestamp == "" || gotSig == "" {
		t.Fatal("expected nonce/timestamp/signature headers to be set")
	}
	if _, err := hex.DecodeString(gotNonce); err != nil {
		t.Errorf("nonce is not hex: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write(gotBody)
	mac.Write([]byte("|"))
	mac.Write([]byte(gotNonce))
	mac.Write([]byte("|"))
	mac.Write([]byte(gotTimestamp))
	want := hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q (recomputed over body|nonce|timestamp)", gotSig, want)
	}
}

func TestProxyProviderMapsUnauthorizedToAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewProxyProvider(server.URL, "tok", "key", "openai", "gpt-4o")
	_, err := p.Complete(context.Background(), Request{History: []models.ChatMessage{models.NewUserMessage("hi")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), string(ErrAuthExpired)) {
		t.Errorf("error = %v, want AuthExpired classification", err)
	}
}
