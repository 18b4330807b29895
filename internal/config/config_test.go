package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("APIPort = %q", cfg.APIPort)
	}
	if cfg.NATSSubject != "documents.extract" {
		t.Fatalf("NATSSubject = %q", cfg.NATSSubject)
	}
	if cfg.Provider != "ocr-parse" {
		t.Fatalf("Provider = %q", cfg.Provider)
	}
	if cfg.ProviderTimeoutSec != 120 || cfg.ProviderRateRPS != 2.0 {
		t.Fatalf("provider tuning = %d/%v", cfg.ProviderTimeoutSec, cfg.ProviderRateRPS)
	}
	if !cfg.TrustPrescan || cfg.PrescanMaxPages != 3 {
		t.Fatalf("prescan config = %v/%d", cfg.TrustPrescan, cfg.PrescanMaxPages)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("EXTRACTION_PROVIDER", "vision-parse")
	t.Setenv("PROVIDER_RATE_RPS", "0.5")
	t.Setenv("TRUST_PRESCAN", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9999" {
		t.Fatalf("APIPort = %q", cfg.APIPort)
	}
	if cfg.Provider != "vision-parse" {
		t.Fatalf("Provider = %q", cfg.Provider)
	}
	if cfg.ProviderRateRPS != 0.5 {
		t.Fatalf("ProviderRateRPS = %v", cfg.ProviderRateRPS)
	}
	if cfg.TrustPrescan {
		t.Fatal("TrustPrescan should be overridden to false")
	}
}

func TestLoadFileOverlayAndPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("api_port: \"7070\"\nprovider: vision-parse\nnats_subject: documents.custom\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Env beats file.
	if cfg.APIPort != "6060" {
		t.Fatalf("APIPort = %q, want env value", cfg.APIPort)
	}
	// File beats default.
	if cfg.Provider != "vision-parse" || cfg.NATSSubject != "documents.custom" {
		t.Fatalf("file overlay not applied: provider=%q subject=%q", cfg.Provider, cfg.NATSSubject)
	}
}

func TestLoadBadEnvValuesFallBack(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "soon")
	t.Setenv("TRUST_PRESCAN", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderTimeoutSec != 120 {
		t.Fatalf("ProviderTimeoutSec = %d, want fallback", cfg.ProviderTimeoutSec)
	}
	if !cfg.TrustPrescan {
		t.Fatal("TrustPrescan should fall back to default true")
	}
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
