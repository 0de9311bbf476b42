package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("SCRIBE_TEST_SECRET", "from-env-secret-0123456789abcdef")
	yaml := `
server:
  addr: ":9090"
  read_timeout: 10s
database:
  driver: postgres
  dsn: postgres://scribe:pw@db:5432/scribe?sslmode=disable
cache:
  driver: redis
  url: redis://cache:6379/0
  listing_ttl: 5m
auth:
  jwt_secret: ${SCRIBE_TEST_SECRET}
  admin_email: ${SCRIBE_TEST_UNSET:-admin@example.com}
rate_limits:
  login:
    requests: 3
  ai:
    requests: -1
`
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("default write timeout lost: %v", cfg.Server.WriteTimeout)
	}
	if cfg.Cache.ListingTTL != 5*time.Minute || cfg.Cache.EntityTTL != time.Hour {
		t.Errorf("cache ttls = %v / %v", cfg.Cache.ListingTTL, cfg.Cache.EntityTTL)
	}
	if cfg.Cache.OpTimeout != 250*time.Millisecond {
		t.Errorf("op timeout = %v", cfg.Cache.OpTimeout)
	}
	if cfg.Auth.JWTSecret != "from-env-secret-0123456789abcdef" {
		t.Errorf("jwt secret not expanded: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AdminEmail != "admin@example.com" {
		t.Errorf("default expansion = %q", cfg.Auth.AdminEmail)
	}

	p := cfg.Policies()
	if p["login"].Requests != 3 || p["login"].Window != 10*time.Minute {
		t.Errorf("login policy = %+v", p["login"])
	}
	if p["ai"].Enabled() {
		t.Errorf("ai policy should be disabled: %+v", p["ai"])
	}
	if p["general"].Requests != 100 {
		t.Errorf("general policy = %+v", p["general"])
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		yaml string
		want string
	}{
		{"database: {driver: mysql}", "database.driver"},
		{"database: {dsn: ''}", "database.dsn"},
		{"cache: {driver: redis}", "redis needs url or addr"},
		{"cache: {driver: memcached}", "cache.driver"},
		{"media: {endpoint: 'localhost:9000'}", "media.bucket"},
		{"rate_limits: {unknown: {requests: 1}}", "unknown policy"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.yaml))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("Parse(%q) error = %v, want %q", tt.yaml, err, tt.want)
		}
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("server: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SCRIBE_TEST_HOST", "db.internal")
	t.Setenv("SCRIBE_TEST_EMPTY", "")

	got := string(expandEnv([]byte("a=${SCRIBE_TEST_HOST} b=${SCRIBE_TEST_MISSING} c=${SCRIBE_TEST_EMPTY:-fallback} d=${SCRIBE_TEST_EMPTY}")))
	want := "a=db.internal b=${SCRIBE_TEST_MISSING} c=fallback d="
	if got != want {
		t.Fatalf("expandEnv() = %q, want %q", got, want)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SCRIBE_DOTENV_A=from-file\nSCRIBE_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCRIBE_DOTENV_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("SCRIBE_DOTENV_A") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SCRIBE_DOTENV_A"); got != "from-file" {
		t.Fatalf("A = %q", got)
	}
	if got := os.Getenv("SCRIBE_DOTENV_B"); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "s"
	cfg.AI.APIKey = "k"
	cfg.Database.DSN = "postgres://u:pw@h/db"
	r := cfg.Redacted()
	if r.Auth.JWTSecret != "********" || r.AI.APIKey != "********" || r.Database.DSN != "********" {
		t.Fatalf("secrets not masked: %+v", r)
	}
	if cfg.Auth.JWTSecret != "s" {
		t.Fatalf("Redacted() mutated the original")
	}
	if r.Media.SecretKey != "" {
		t.Fatalf("empty secret should stay empty")
	}
}
