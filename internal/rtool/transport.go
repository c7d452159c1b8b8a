package rtool

import (
	"context"
	"encoding/json"
)

// Transport is the shared contract both the pipe and network transports
// implement: connect once, issue request/response calls, close once.
type Transport interface {
	Connect(ctx context.Context) error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Close() error
	Connected() bool
}

// NewTransport builds the transport a ServerConfig's resolved Kind calls
// for. Embedded configs have no transport of their own — the session
// talks to an in-process server directly — so this only covers pipe/http.
func NewTransport(cfg ServerConfig) Transport {
	if cfg.Kind() == TransportHTTP {
		return newHTTPTransport(cfg)
	}
	return newPipeTransport(cfg)
}
