package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here

	cfg := Load()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Scan.IdleWindow != 500*time.Millisecond {
		t.Errorf("Scan.IdleWindow = %v, want 500ms", cfg.Scan.IdleWindow)
	}
	if cfg.Scan.MaxTimeout != 120*time.Second {
		t.Errorf("Scan.MaxTimeout = %v, want 120s", cfg.Scan.MaxTimeout)
	}
	if cfg.Store.DSN != "ecoaudit.db" {
		t.Errorf("Store.DSN = %q, want ecoaudit.db", cfg.Store.DSN)
	}
	if len(cfg.CORS.AllowOrigins) != 1 || cfg.CORS.AllowOrigins[0] != "*" {
		t.Errorf("CORS.AllowOrigins = %v, want [*]", cfg.CORS.AllowOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ECOAUDIT_PORT", "9090")
	t.Setenv("ECOAUDIT_IDLE_WINDOW", "750ms")
	t.Setenv("ECOAUDIT_API_KEYS", " a , b ,,c")
	t.Setenv("ECOAUDIT_DB", "")
	t.Setenv("ECOAUDIT_HEADLESS", "not-a-bool")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scan.IdleWindow != 750*time.Millisecond {
		t.Errorf("Scan.IdleWindow = %v, want 750ms", cfg.Scan.IdleWindow)
	}
	if got := cfg.Auth.APIKeys; len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Auth.APIKeys = %v, want [a b c]", got)
	}
	if cfg.Store.DSN != "" {
		t.Errorf("Store.DSN = %q, want empty (history disabled)", cfg.Store.DSN)
	}
	if !cfg.Browser.Headless {
		t.Error("invalid bool should fall back to the default (true)")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, ".env", "ECOAUDIT_MAX_PAGES=7\n")
	// Register a restore, then unset: godotenv never overrides existing vars.
	t.Setenv("ECOAUDIT_MAX_PAGES", "")
	os.Unsetenv("ECOAUDIT_MAX_PAGES")

	cfg := Load()

	if cfg.Browser.MaxPages != 7 {
		t.Errorf("Browser.MaxPages = %d, want 7 from .env", cfg.Browser.MaxPages)
	}
}
