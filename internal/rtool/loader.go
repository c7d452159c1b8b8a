package rtool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// configFile is the on-disk shape of an mcp_config.json-style file: a
// map of server name to its config. The name is duplicated into each
// ServerConfig.Name for convenience once loaded.
type configFile struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// LoadConfig reads a JSON config file listing named remote tool servers.
func LoadConfig(path string) ([]ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rtool: read config %s: %w", path, err)
	}
	var parsed configFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("rtool: parse config %s: %w", path, err)
	}
	out := make([]ServerConfig, 0, len(parsed.Servers))
	for name, cfg := range parsed.Servers {
		cfg.Name = name
		out = append(out, cfg)
	}
	return out, nil
}

// ConnectAll opens a Session for every config, logging and skipping any
// server whose preferred transport fails to connect — one misconfigured
// remote tool server should not abort a whole task. A config with an
// explicitly configured URL never falls back to another transport kind;
// everything else (embedded, spawn) is already its own terminal choice
// per cfg.Kind(), so "fall back to the next" only matters when the
// caller supplies more than one config for the same logical server.
func ConnectAll(ctx context.Context, logger *slog.Logger, configs []ServerConfig) map[string]*Session {
	sessions := make(map[string]*Session, len(configs))
	for _, cfg := range configs {
		session, err := Connect(ctx, cfg)
		if err != nil {
			if logger != nil {
				logger.Warn("remote tool session failed to connect", "server", cfg.Name, "kind", cfg.Kind(), "error", err)
			}
			continue
		}
		sessions[cfg.Name] = session
	}
	return sessions
}
