package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	c, err := loadConfig(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c.BaseURL != "https://api.aport.io" {
		t.Fatalf("base_url = %q", c.BaseURL)
	}
	if c.TimeoutMS != 800 {
		t.Fatalf("timeout_ms = %d, want 800", c.TimeoutMS)
	}
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "base_url: https://aport.example.com\nagent_id: ap_cfg\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("APORT_TIMEOUT_MS", "1500")

	c, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c.BaseURL != "https://aport.example.com" {
		t.Fatalf("base_url = %q", c.BaseURL)
	}
	if c.AgentID != "ap_cfg" {
		t.Fatalf("agent_id = %q", c.AgentID)
	}
	if c.TimeoutMS != 1500 {
		t.Fatalf("timeout_ms = %d, env override lost", c.TimeoutMS)
	}
}
