package config

import (
	"strings"
	"testing"
)

func TestResolveDSNPrefersDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@h:1/db")
	if got := ResolveDSN(); got != "postgres://u:p@h:1/db" {
		t.Fatalf("ResolveDSN = %q", got)
	}
}

func TestResolveDSNFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "pg")
	t.Setenv("PGPORT", "6543")
	t.Setenv("POSTGRES_USER", "editor")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "photos")
	got := ResolveDSN()
	if got != "postgres://editor:secret@pg:6543/photos?sslmode=disable" {
		t.Fatalf("ResolveDSN = %q", got)
	}
	if s := SafeDSNSummary(got); strings.Contains(s, "secret") || s != "host=pg port=6543 db=photos user=editor" {
		t.Fatalf("SafeDSNSummary = %q", s)
	}
}

func TestResolveDSNEmpty(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	if got := ResolveDSN(); got != "" {
		t.Fatalf("ResolveDSN = %q, want empty", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("PORT", "")
	t.Setenv("MAX_UPLOAD_BYTES", "nope")
	cfg := Load()
	if cfg.Port != "8080" || cfg.GeminiEditModel != "gemini-2.5-flash-image-preview" || cfg.GeminiDetectModel != "gemini-2.5-flash" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}
