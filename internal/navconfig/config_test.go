package navconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadExpandsEnvAndResolvesIncludes(t *testing.T) {
	t.Setenv("TEST_MASTER_KEY_ENV", "SURFARI_MASTER_KEY")
	dir := t.TempDir()

	writeTempFile(t, dir, "sites.yaml", `
sites:
  united:
    site_id: 1
    site_name: united
    url: https://united.com
    vendor: openai
    model: gpt-5
`)

	mainPath := writeTempFile(t, dir, "nav.yaml", `
$include: sites.yaml
workspace: ./workspace
master_key_env: ${TEST_MASTER_KEY_ENV}
vendors:
  openai:
    kind: openai
    api_key_env: OPENAI_API_KEY
    default_model: gpt-5
`)

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MasterKeyEnv != "SURFARI_MASTER_KEY" {
		t.Fatalf("expected env expansion, got %q", cfg.MasterKeyEnv)
	}
	site, ok := cfg.Sites["united"]
	if !ok {
		t.Fatalf("expected the included site to merge in")
	}
	if site.SiteID != 1 || site.URL != "https://united.com" {
		t.Fatalf("unexpected included site: %+v", site)
	}
	if _, ok := cfg.Vendors["openai"]; !ok {
		t.Fatalf("expected the main file's own vendors to survive the merge")
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.yaml", "$include: b.yaml\n")
	bPath := writeTempFile(t, dir, "b.yaml", "$include: a.yaml\n")

	_, err := Load(bPath)
	if err == nil {
		t.Fatalf("expected an include-cycle error")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "nav.yaml", "not_a_real_field: 1\n")

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected an error for an unknown top-level field")
	}
}
