package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
}

func TestLoad(t *testing.T) {
	yaml := `
listen_addr: ":9090"
artifacts_dir: "/tmp/artifacts"
artifact_prefix: "certs"
headless: false
no_sandbox: true
screenshots: true
chrome_path: "/usr/bin/chromium"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ArtifactPrefix != "certs" {
		t.Errorf("ArtifactPrefix = %q", cfg.ArtifactPrefix)
	}
	if cfg.Headless {
		t.Error("Headless should be false")
	}
	if !cfg.NoSandbox {
		t.Error("NoSandbox should be true")
	}
	// Fields absent from the file keep their defaults.
	if cfg.BaseURL != "https://mytax.dc.gov/_/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ArtifactsDir != "artifacts" {
		t.Errorf("ArtifactsDir = %q", cfg.ArtifactsDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("CHROME_PATH", "/opt/chrome/chrome")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Errorf("ListenAddr = %q, want :3000", cfg.ListenAddr)
	}
	if cfg.ChromePath != "/opt/chrome/chrome" {
		t.Errorf("ChromePath = %q", cfg.ChromePath)
	}
}

func TestValidate_BadListenAddr(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = "8080"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for addr without colon")
	}
}
