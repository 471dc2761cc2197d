package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdir moves the test into a fresh directory with no sigla.yml
func chdir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWd) })
	return tmpDir
}

func TestLoad(t *testing.T) {
	chdir(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SIGLA_DATABASE_URL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	// Check defaults
	if cfg.Database.URL != "memory://" {
		t.Errorf("expected default database url 'memory://', got %s", cfg.Database.URL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Lock.Enabled() {
		t.Error("expected lock to be disabled by default")
	}
	if cfg.Lock.Key != "sigla:load" {
		t.Errorf("expected default lock key 'sigla:load', got %s", cfg.Lock.Key)
	}
	if cfg.Lock.TTL != 10*time.Minute {
		t.Errorf("expected default lock ttl 10m, got %s", cfg.Lock.TTL)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr ':8080', got %s", cfg.Server.Addr)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	chdir(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SIGLA_DATABASE_URL", "")

	configContent := `
database:
  url: postgresql://localhost/sigla
log:
  level: debug
  development: true
lock:
  redis_url: redis://localhost:6379/0
  ttl: 90s
server:
  addr: 127.0.0.1:9000
`
	os.WriteFile("sigla.yml", []byte(configContent), 0644)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.Database.URL != "postgresql://localhost/sigla" {
		t.Errorf("expected database URL from file, got %s", cfg.Database.URL)
	}
	if !cfg.Logging().Development || cfg.Logging().Level != "debug" {
		t.Errorf("expected development debug logging, got %+v", cfg.Logging())
	}
	if !cfg.Lock.Enabled() || cfg.Lock.TTL != 90*time.Second {
		t.Errorf("expected lock enabled with 90s ttl, got %+v", cfg.Lock)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("expected addr from file, got %s", cfg.Server.Addr)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	dir := chdir(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SIGLA_DATABASE_URL", "")

	path := filepath.Join(dir, "custom.yaml")
	os.WriteFile(path, []byte("database:\n  url: sqlite:///tmp/sigla.db\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "sqlite:///tmp/sigla.db" {
		t.Errorf("expected sqlite url, got %s", cfg.Database.URL)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestDatabaseURLFromEnvironment(t *testing.T) {
	chdir(t)
	os.WriteFile("sigla.yml", []byte("database:\n  url: postgresql://config/sigla\n"), 0644)

	t.Setenv("SIGLA_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgresql://env/sigla")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgresql://env/sigla" {
		t.Errorf("expected DATABASE_URL from environment, got %s", cfg.Database.URL)
	}

	t.Setenv("SIGLA_DATABASE_URL", "postgresql://prefixed/sigla")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgresql://prefixed/sigla" {
		t.Errorf("expected SIGLA_DATABASE_URL to win, got %s", cfg.Database.URL)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unsupported scheme", "database:\n  url: mongodb://localhost/sigla\n", "database.url"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"zero ttl", "lock:\n  redis_url: redis://localhost\n  ttl: 0s\n", "lock.ttl"},
		{"empty addr", "server:\n  addr: \"\"\n", "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			t.Setenv("DATABASE_URL", "")
			t.Setenv("SIGLA_DATABASE_URL", "")
			os.WriteFile("sigla.yml", []byte(tt.content), 0644)

			_, err := Load("")
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
