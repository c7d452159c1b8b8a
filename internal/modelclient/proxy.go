package modelclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// ProxyProvider routes completions through a central gateway instead of
// calling a vendor SDK directly. Every request is bearer-token
// authenticated and HMAC-SHA256 signed over body|nonce|timestamp per
// spec.md §4.5, so the gateway can verify the call came from a holder of
// the shared signing secret without trusting the bearer token alone.
// There is no teacher analogue for request signing (internal/agent's
// providers all call vendor SDKs or an OpenAI-compatible proxy with no
// signature), so this is a direct implementation of the spec's own
// algorithm on crypto/hmac and crypto/sha256.
type ProxyProvider struct {
	client       *http.Client
	url          string
	bearerToken  string
	signingKey   []byte
	vendor       string
	defaultModel string
}

func NewProxyProvider(url, bearerToken, signingKey, vendor, defaultModel string) *ProxyProvider {
	return &ProxyProvider{
		client:       &http.Client{Timeout: 120 * time.Second},
		url:          url,
		bearerToken:  bearerToken,
		signingKey:   []byte(signingKey),
		vendor:       vendor,
		defaultModel: defaultModel,
	}
}

func (p *ProxyProvider) Name() string { return "proxy:" + p.vendor }

type proxyRequestEnvelope struct {
	Vendor    string                `json:"vendor"`
	Model     string                `json:"model"`
	System    string                `json:"system,omitempty"`
	Turns     []proxyTurn           `json:"turns"`
	Tools     json.RawMessage       `json:"tools,omitempty"`
	MaxTokens int                   `json:"max_tokens,omitempty"`
	Purpose   string                `json:"purpose,omitempty"`
	SiteID    string                `json:"site_id,omitempty"`
}

type proxyTurn struct {
	Kind       TurnKind       `json:"kind"`
	Text       string         `json:"text,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Payload    string         `json:"payload,omitempty"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

type proxyResponseEnvelope struct {
	Text      string           `json:"text"`
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
	Usage     models.TokenUsage `json:"usage"`
	Error     string           `json:"error,omitempty"`
}

func (p *ProxyProvider) Complete(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	turns := Normalize(req.History)
	envelope := proxyRequestEnvelope{
		Vendor:    p.vendor,
		Model:     model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Purpose:   req.Purpose,
		SiteID:    req.SiteID,
	}
	for _, t := range turns {
		pt := proxyTurn{Kind: t.Kind, Text: t.Text, ToolCallID: t.ToolCallID, ToolName: t.ToolName, Payload: t.Payload}
		if t.Kind == TurnToolCall {
			pt.ToolName = t.ToolCall.Name
			pt.ToolCallID = t.ToolCall.ID
			pt.Arguments = t.ToolCall.Arguments
		}
		envelope.Turns = append(envelope.Turns, pt)
	}
	if len(req.Tools) > 0 {
		raw, err := json.Marshal(req.Tools)
		if err != nil {
			return Result{}, classify(ErrInvalidRequest, err)
		}
		envelope.Tools = raw
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}
	if err := p.sign(httpReq, body); err != nil {
		return Result{}, classify(ErrInvalidRequest, err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, classify(classifyVendorError(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Result{}, classify(ErrTransientNetwork, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return Result{}, classify(ErrAuthExpired, fmt.Errorf("proxy: 401 unauthorized"))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Result{}, classify(classifyVendorError(fmt.Errorf("%d", resp.StatusCode)), fmt.Errorf("proxy status %d: %s", resp.StatusCode, raw))
	}

	var decoded proxyResponseEnvelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, classify(ErrVendor, fmt.Errorf("proxy: decode response: %w", err))
	}
	if decoded.Error != "" {
		return Result{}, classify(ErrVendor, fmt.Errorf("%s", decoded.Error))
	}
	return Result{Text: decoded.Text, ToolCalls: decoded.ToolCalls, Usage: decoded.Usage}, nil
}

// sign attaches the bearer token and an HMAC-SHA256 signature computed
// over body|nonce|timestamp, where nonce is 16 random bytes (hex-encoded
// in the header) and timestamp is Unix seconds. The gateway recomputes
// the same digest from the received body and headers to authenticate
// the caller independently of the bearer token.
func (p *ProxyProvider) sign(httpReq *http.Request, body []byte) error {
	httpReq.Header.Set("Content-Type", "application/json")
	if p.bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.bearerToken)
	}
	if len(p.signingKey) == 0 {
		return nil
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("proxy: generate nonce: %w", err)
	}
	nonceHex := hex.EncodeToString(nonce)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	mac := hmac.New(sha256.New, p.signingKey)
	mac.Write(body)
	mac.Write([]byte("|"))
	mac.Write([]byte(nonceHex))
	mac.Write([]byte("|"))
	mac.Write([]byte(timestamp))
	signature := hex.EncodeToString(mac.Sum(nil))

	httpReq.Header.Set("X-Signature-Nonce", nonceHex)
	httpReq.Header.Set("X-Signature-Timestamp", timestamp)
	httpReq.Header.Set("X-Signature", signature)
	return nil
}
