package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
database:
  driver: sqlite
  sqlite:
    path: /tmp/inv.db
jwt:
  signing_key: test-signing-key
vision:
  seal_key: test-seal-key
images:
  max_dimension: 640
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Images.MaxDimension != 640 || cfg.Images.JPEGQuality != 85 {
		t.Errorf("images = %+v", cfg.Images)
	}
	if cfg.Invite.TTL != 72*time.Hour || cfg.Invite.CodeLength != 6 {
		t.Errorf("invite = %+v", cfg.Invite)
	}
	if cfg.Vision.Model != "gpt-4o" || cfg.Vision.MaxTokens != 300 {
		t.Errorf("vision = %+v", cfg.Vision)
	}
	if !cfg.Cloud.TransactionalWrites {
		t.Error("cloud.transactional_writes should default to true")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "database:\n  driver: oracle\njwt:\n  signing_key: k\nvision:\n  seal_key: s\n"},
		{"missing signing key", "vision:\n  seal_key: s\n"},
		{"missing seal key", "jwt:\n  signing_key: k\n"},
		{"s3 without bucket", "jwt:\n  signing_key: k\nvision:\n  seal_key: s\nimages:\n  backend: s3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Fatal("Load accepted an invalid config")
			}
		})
	}
}
