// Package otp implements navagent.OTPFetcher against a Gmail inbox,
// grounded on original_source's GmailOTPClientAsync (get_otp_code /
// get_latest_code) and mcp-gmail's credentials/token file conventions
// for the underlying OAuth2 client.
package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailFetcher polls a Gmail inbox for the most recent one-time-passcode
// email, matching get_otp_code's retry-with-interval loop.
type GmailFetcher struct {
	service *gmail.Service

	// FromMe restricts the search to messages sent by the account
	// owner, mirroring get_otp_code's default from_me=true.
	FromMe bool
	// WithinSeconds bounds how recent a matching message must be.
	WithinSeconds int
	// RetryInterval and MaxRetries bound the poll loop.
	RetryInterval time.Duration
	MaxRetries    int
	// MaxResults caps how many recent messages are fetched per query.
	MaxResults int64
}

// NewGmailFetcher builds a GmailFetcher from a saved OAuth2 credentials
// file and token file, following mcp-gmail's initGmailService flow:
// parse the installed-app credentials, load a previously authorized
// token, and build an authenticated Gmail API client.
func NewGmailFetcher(ctx context.Context, credentialsPath, tokenPath string) (*GmailFetcher, error) {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("otp: read gmail credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("otp: parse gmail credentials: %w", err)
	}
	token, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("otp: no gmail token at %s, run the Gmail auth flow first: %w", tokenPath, err)
	}

	client := cfg.Client(ctx, token)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("otp: create gmail service: %w", err)
	}

	return &GmailFetcher{
		service:       svc,
		FromMe:        true,
		WithinSeconds: 30,
		RetryInterval: 10 * time.Second,
		MaxRetries:    6,
		MaxResults:    10,
	}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// GetCode implements navagent.OTPFetcher, porting get_otp_code's
// attempt-then-sleep retry loop over get_latest_code.
func (g *GmailFetcher) GetCode(ctx context.Context) (string, error) {
	maxRetries := g.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 6
	}
	interval := g.RetryInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		code, err := g.latestCode(ctx)
		if err != nil {
			return "", err
		}
		if code != "" {
			return code, nil
		}
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return "", fmt.Errorf("otp: no code found in gmail within %d attempts", maxRetries)
}

// latestCode ports get_latest_code: query recent messages, examine them
// most-recent-first, preferring a code extracted from the Subject
// header before falling back to the snippet body.
func (g *GmailFetcher) latestCode(ctx context.Context) (string, error) {
	query := g.buildQuery()
	maxResults := g.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	resp, err := g.service.Users.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("otp: gmail search: %w", err)
	}

	for _, m := range resp.Messages {
		detail, err := g.service.Users.Messages.Get("me", m.Id).
			Format("metadata").MetadataHeaders("Subject").Context(ctx).Do()
		if err != nil {
			continue
		}

		subject := headerValue(detail, "Subject")
		if code := extractCodeFromSubject(subject); code != "" {
			return code, nil
		}
		if code := extractCodeFromText(detail.Snippet); code != "" {
			return code, nil
		}
	}
	return "", nil
}

func (g *GmailFetcher) buildQuery() string {
	since := time.Now().Add(-time.Duration(max(g.WithinSeconds, 0)) * time.Second).Unix()
	subjectHint := "(subject:code OR subject:verification OR subject:passcode OR subject:OTP)"
	base := fmt.Sprintf("after:%d label:inbox %s", since, subjectHint)
	if g.FromMe {
		return "from:me " + base
	}
	return base
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

var otpCodePattern = regexp.MustCompile(`\b(\d{4,8})\b`)

func extractCodeFromSubject(subject string) string {
	lower := strings.ToLower(subject)
	hasHint := false
	for _, w := range []string{"code", "otp", "passcode", "verification"} {
		if strings.Contains(lower, w) {
			hasHint = true
			break
		}
	}
	if !hasHint {
		return ""
	}
	return extractCodeFromText(subject)
}

func extractCodeFromText(text string) string {
	m := otpCodePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
