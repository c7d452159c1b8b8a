// Package navconfig loads the navigation agent CLI's YAML configuration:
// vendor credentials, per-site agent settings, tool servers, and the
// shared storage paths the navigation loop needs. Config files may pull
// in other files through $include and reference environment variables.
package navconfig

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/surfari-go/internal/navagent"
	"github.com/haasonsaas/surfari-go/internal/rtool"
)

// Config is the navigation agent CLI's top-level configuration.
type Config struct {
	Workspace    string `yaml:"workspace"`
	LogPath      string `yaml:"log_path"`
	ReplayDBPath string `yaml:"replay_db_path"`
	StatsDBPath  string `yaml:"stats_db_path"`
	CredDBPath   string `yaml:"cred_db_path"`
	MasterKeyEnv string `yaml:"master_key_env"`

	Browser BrowserConfig `yaml:"browser"`

	Vendors     map[string]VendorConfig     `yaml:"vendors"`
	ToolServers map[string]rtool.ServerConfig `yaml:"tool_servers"`
	Sites       map[string]SiteConfig       `yaml:"sites"`
	ModelRates  map[string]navagent.ModelRates `yaml:"model_rates"`

	Gmail GmailConfig `yaml:"gmail"`

	// Pinecone configures an optional embedding-backed value resolver
	// (resolver.PineconeResolver), a last-resort stage in the value
	// resolver chain for placeholders the secret/configured stages
	// can't answer. Absent when Index is empty.
	Pinecone PineconeConfig `yaml:"pinecone"`
}

// PineconeConfig is the YAML-loadable form of resolver.PineconeConfig.
type PineconeConfig struct {
	APIKeyEnv            string  `yaml:"api_key_env"`
	Index                string  `yaml:"index"`
	Namespace            string  `yaml:"namespace"`
	EmbedModel           string  `yaml:"embed_model"`
	ScoreThreshold       *float64 `yaml:"score_threshold"`
	TopK                 int     `yaml:"top_k"`
	EmbeddingsBaseURL    string  `yaml:"embeddings_base_url"`
	EmbeddingsAPIKeyEnv  string  `yaml:"embeddings_api_key_env"`
}

// BrowserConfig mirrors internal/browser.Config's fields as YAML-loadable
// strings/primitives (the Mode enum becomes a string here).
type BrowserConfig struct {
	Mode           string `yaml:"mode"` // "launch" (default) or "attach"
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	AttachEndpoint   string `yaml:"attach_endpoint"`
	AttachSocketPath string `yaml:"attach_socket_path"`
	UserDataDir      string `yaml:"user_data_dir"`
}

// VendorConfig names one registered modelclient.Provider and where its
// credential comes from. APIKeyEnv is read at wiring time, never stored
// in the config file itself.
type VendorConfig struct {
	Kind         string `yaml:"kind"` // anthropic|openai|gemini|bedrock|ollama|proxy
	APIKeyEnv    string `yaml:"api_key_env"`
	DefaultModel string `yaml:"default_model"`
	Region       string `yaml:"region"`   // bedrock
	BaseURL      string `yaml:"base_url"` // ollama/proxy
	SigningKeyEnv string `yaml:"signing_key_env"` // proxy
}

// SiteConfig is one site's navagent.Config, as loaded from YAML rather
// than built programmatically.
type SiteConfig struct {
	SiteID                 int64         `yaml:"site_id"`
	SiteName               string        `yaml:"site_name"`
	URL                    string        `yaml:"url"`
	Vendor                 string        `yaml:"vendor"`
	Model                  string        `yaml:"model"`
	ReviewerModel          string        `yaml:"reviewer_model"`
	SystemPromptFile       string        `yaml:"system_prompt_file"`
	EnableDataMasking      bool          `yaml:"enable_data_masking"`
	MaxTurns               int           `yaml:"max_turns"`
	MaxLocatorErrors       int           `yaml:"max_locator_errors"`
	UseReplay              bool          `yaml:"use_replay"`
	UseParameterization    bool          `yaml:"use_parameterization"`
	SaveSuccessfulTaskOnly bool          `yaml:"save_successful_task_only"`
	ToolServers            []string      `yaml:"tool_servers"`
	DelegationSites        []string      `yaml:"delegation_sites"`
	ReasoningBoxDelay      time.Duration `yaml:"reasoning_box_delay"`
}

// GmailConfig points at the OAuth2 credential/token files an
// internal/otp.GmailFetcher needs.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

const includeKey = "$include"

// Load reads path, resolving $include directives and expanding
// ${VAR}/$VAR environment references, then decodes the merged document
// into a Config.
func Load(path string) (*Config, error) {
	raw, err := loadRawRecursive(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("navconfig: re-marshal merged config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("navconfig: parse config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("navconfig: expected a single YAML document")
	}
	return &cfg, nil
}

func loadRawRecursive(path string, seen map[string]bool) (map[string]any, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if seen[absPath] {
		return nil, fmt.Errorf("navconfig: include cycle detected at %s", absPath)
	}
	seen[absPath] = true
	defer delete(seen, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("navconfig: parse %s: %w", absPath, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	includes, err := extractIncludes(raw)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	if len(includes) > 0 {
		baseDir := filepath.Dir(absPath)
		for _, inc := range includes {
			if strings.TrimSpace(inc) == "" {
				continue
			}
			incPath := inc
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(baseDir, incPath)
			}
			incRaw, err := loadRawRecursive(incPath, seen)
			if err != nil {
				return nil, err
			}
			merged = mergeMaps(merged, incRaw)
		}
	}
	return mergeMaps(merged, raw), nil
}

func extractIncludes(raw map[string]any) ([]string, error) {
	val, ok := raw[includeKey]
	if !ok {
		return nil, nil
	}
	delete(raw, includeKey)

	switch typed := val.(type) {
	case string:
		return []string{typed}, nil
	case []any:
		paths := make([]string, 0, len(typed))
		for _, entry := range typed {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("navconfig: $include entries must be strings")
			}
			paths = append(paths, s)
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("navconfig: $include must be a string or list of strings")
	}
}

func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		if valueMap, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeMaps(existing, valueMap)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}
