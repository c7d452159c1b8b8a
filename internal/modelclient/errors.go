package modelclient

import "strings"

// classifyVendorError maps a raw vendor error string into an ErrorKind,
// mirroring the substring-matching heuristic the teacher's providers use
// since none of the vendor SDKs expose a single typed "retryable" error
// across every transport (HTTP, gRPC, stdlib net errors all surface
// differently).
func classifyVendorError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "expired"), strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "invalid_api_key"):
		return ErrAuthExpired
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "invalid_request"):
		return ErrInvalidRequest
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "eof"):
		return ErrTransientNetwork
	default:
		return ErrVendor
	}
}

// isRetryable reports whether kind warrants one automatic retry.
// RateLimited and TransientNetwork both get one retry (spec.md §4.5 rows
// "TransientNetwork: one retry" / rate limiting is a special case of the
// same row); AuthExpired gets one refresh-then-retry, handled separately
// by Client.Complete since it needs a credential refresh hook, not just a
// delay.
func isRetryable(kind ErrorKind) bool {
	switch kind {
	case ErrTransientNetwork, ErrRateLimited:
		return true
	default:
		return false
	}
}
