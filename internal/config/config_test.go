package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brisby.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `data_dir = "/tmp/brisby-data"`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.DataDir != "/tmp/brisby-data" {
		t.Fatalf("expected data_dir preserved, got %q", c.DataDir)
	}
	if c.DHT.K != 10 || c.DHT.Alpha != 3 {
		t.Fatalf("expected DHT defaults, got %+v", c.DHT)
	}
	if c.Transfer.MaxConcurrentRequests != 50 || c.Transfer.RequestTimeoutSecs != 30 {
		t.Fatalf("expected transfer defaults, got %+v", c.Transfer)
	}
}

func TestLoadExpandsHomeTilde(t *testing.T) {
	path := writeConfig(t, `data_dir = "~/brisby-test-data"`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}
	want := filepath.Join(home, "brisby-test-data")
	if c.DataDir != want {
		t.Fatalf("expected %q, got %q", want, c.DataDir)
	}
}

func TestLoadIndexProvidersAndTransfer(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/tmp/brisby-data"

[[index_providers]]
name = "primary"
nym_address = "nym1providerexample"

[dht]
k = 20
alpha = 5

[transfer]
max_concurrent_requests = 10
request_timeout_secs = 15
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(c.IndexProviders) != 1 || c.IndexProviders[0].Name != "primary" {
		t.Fatalf("expected one index provider named primary, got %+v", c.IndexProviders)
	}
	if c.DHT.K != 20 || c.DHT.Alpha != 5 {
		t.Fatalf("expected overridden DHT values, got %+v", c.DHT)
	}
	if c.Transfer.MaxConcurrentRequests != 10 || c.Transfer.RequestTimeoutSecs != 15 {
		t.Fatalf("expected overridden transfer values, got %+v", c.Transfer)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "brisby.toml")
	def := Default()
	def.DataDir = filepath.Join(dir, "data")
	if err := Write(def, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DataDir != def.DataDir {
		t.Fatalf("expected data_dir %q, got %q", def.DataDir, c.DataDir)
	}
}

func TestEnsureDataDirs(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureDataDirs(dir); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}
	for _, sub := range []string{"chunks", "downloads", "nym"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", sub)
		}
	}
}
