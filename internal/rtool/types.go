// Package rtool implements the Remote Tool Session (C4): pipe and network
// transports behind one contract (connect/list_tools/list_resources/
// read_resource/call_tool/close), an embedded path-safe filesystem tool
// server, and a config loader that resolves named servers with
// explicit-URL > embedded > spawn precedence.
package rtool

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TransportKind selects how a Remote Tool Session reaches its server.
type TransportKind string

const (
	TransportPipe     TransportKind = "pipe"
	TransportHTTP     TransportKind = "http"
	TransportEmbedded TransportKind = "embedded"
)

// ServerConfig describes one named remote tool server. Exactly one of
// URL, Embedded, or Command should be set; Kind applies the
// URL > embedded > spawn precedence spec.md §4.4 requires.
type ServerConfig struct {
	Name string `json:"name" yaml:"name"`

	// Network transport.
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Embedded filesystem server.
	Embedded bool   `json:"embedded,omitempty" yaml:"embedded,omitempty"`
	Root     string `json:"root,omitempty" yaml:"root,omitempty"`

	// Pipe transport.
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Kind resolves which transport this config prefers, per the
// URL > embedded > spawn precedence rule.
func (c ServerConfig) Kind() TransportKind {
	switch {
	case strings.TrimSpace(c.URL) != "":
		return TransportHTTP
	case c.Embedded:
		return TransportEmbedded
	default:
		return TransportPipe
	}
}

// Validate rejects configs with no usable transport or a Command with
// obvious shell-injection metacharacters in its arguments, mirroring the
// teacher's stdio config hardening.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("rtool: server name is required")
	}
	switch c.Kind() {
	case TransportHTTP:
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
			return fmt.Errorf("rtool: server %q URL must start with http:// or https://", c.Name)
		}
	case TransportEmbedded:
		if strings.TrimSpace(c.Root) == "" {
			return fmt.Errorf("rtool: server %q is embedded but has no root", c.Name)
		}
	case TransportPipe:
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("rtool: server %q has neither url, embedded root, nor command", c.Name)
		}
		for i, arg := range c.Args {
			if containsShellMetachars(arg) {
				return fmt.Errorf("rtool: server %q arg[%d] contains suspicious shell metacharacters: %q", c.Name, i, arg)
			}
		}
		if c.Cwd != "" && strings.Contains(filepath.Clean(c.Cwd), "..") {
			return fmt.Errorf("rtool: server %q cwd contains path traversal: %q", c.Name, c.Cwd)
		}
	}
	return nil
}

func containsShellMetachars(s string) bool {
	for _, pattern := range []string{"$(", "${", "`", "&&", "||", ";", "|", ">", "<", "\n", "\r"} {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}

// ToolDecl is one tool a remote server advertises.
type ToolDecl struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  []byte `json:"parameters"`
}

// ResourceDecl is one resource URI a remote server advertises.
type ResourceDecl struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mime_type"`
}

// CallResult is call_tool's normalized outcome: OK/Error carry the
// success discriminant, Data prefers a server-provided structured "data"
// field and falls back to the raw decoded result otherwise.
type CallResult struct {
	OK        bool   `json:"ok"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}
