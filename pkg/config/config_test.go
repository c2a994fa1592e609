package config

import (
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	APIToken string `split_words:"true" required:"true"`
	TopK     int    `split_words:"true" default:"4"`
}

func TestNewReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CFGTEST_API_TOKEN=secret\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		SetEnvFile("")
		os.Unsetenv("CFGTEST_API_TOKEN")
	})

	SetEnvFile(path)
	conf, err := New[sampleConfig]("CFGTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.APIToken != "secret" {
		t.Fatalf("APIToken = %q, want %q", conf.APIToken, "secret")
	}
	if conf.TopK != 4 {
		t.Fatalf("TopK = %d, want default 4", conf.TopK)
	}
}

func TestNewKeepsExistingEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CFGKEEP_API_TOKEN=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CFGKEEP_API_TOKEN", "from-env")
	t.Cleanup(func() { SetEnvFile("") })

	SetEnvFile(path)
	conf, err := New[sampleConfig]("CFGKEEP")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.APIToken != "from-env" {
		t.Fatalf("APIToken = %q, want %q", conf.APIToken, "from-env")
	}
}

func TestNewMissingRequired(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })
	SetEnvFile(filepath.Join(t.TempDir(), "missing.env"))

	if _, err := New[sampleConfig]("CFGMISSING"); err == nil {
		t.Fatal("expected error for unreadable env file")
	}
}
