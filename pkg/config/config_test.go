package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postergen.yaml")
	yamlDoc := `
output_dir: ./out
scale: 3
storage:
  endpoint: localhost:9000
  use_ssl: true
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	want := Defaults()
	want.OutputDir = "./out"
	want.Scale = 3
	want.Storage.Endpoint = "localhost:9000"
	want.Storage.UseSSL = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile() on missing file: want error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("scale: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() on malformed YAML: want error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDatabaseURL: "postgres://localhost/postergen",
		EnvS3Endpoint:  "s3.local:9000",
		EnvS3Bucket:    " posters ",
		EnvS3UseSSL:    "true",
		EnvUserID:      "user-1",
	}
	cfg := Defaults()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://localhost/postergen" || cfg.UserID != "user-1" {
		t.Errorf("config = %+v", cfg)
	}
	want := StorageConfig{Endpoint: "s3.local:9000", Bucket: "posters", UseSSL: true}
	if diff := cmp.Diff(want, cfg.Storage); diff != "" {
		t.Errorf("storage mismatch (-want +got):\n%s", diff)
	}

	bad := Defaults()
	if err := bad.ApplyEnv(func(k string) string {
		if k == EnvS3UseSSL {
			return "maybe"
		}
		return ""
	}); err == nil {
		t.Error("ApplyEnv() with malformed bool: want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero scale", func(c *Config) { c.Scale = 0 }, true},
		{"negative probe timeout", func(c *Config) { c.ProbeTimeoutMs = -1 }, true},
		{"zero record timeout", func(c *Config) { c.RecordTimeoutMs = 0 }, true},
		{"empty brand", func(c *Config) { c.BrandPrefix = "" }, true},
		{"endpoint without bucket", func(c *Config) { c.Storage.Endpoint = "x"; c.Storage.Bucket = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToOrchestratorConfig(t *testing.T) {
	oc := Defaults().ToOrchestratorConfig()
	if oc.BrandPrefix != "aeemci" || oc.Scale != 2 {
		t.Errorf("orchestrator config = %+v", oc)
	}
	if oc.ProbeTimeout != 3*time.Second || oc.RecordTimeout != 5*time.Second {
		t.Errorf("timeouts = %v / %v", oc.ProbeTimeout, oc.RecordTimeout)
	}
}
