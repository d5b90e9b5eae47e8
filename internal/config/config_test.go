package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every BIZPULSE_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func noSecrets(t *testing.T) secretsFile {
	return secretsFile{path: filepath.Join(t.TempDir(), "secrets.json")}
}

// TestDefaults verifies all default values are applied when the config file is empty.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	cfg, err := loadWith(newFileBackend(path), noSecrets(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Completion.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("Completion.BaseURL = %q", cfg.Completion.BaseURL)
	}
	if cfg.Completion.Model != "llama-3.1-70b-versatile" {
		t.Errorf("Completion.Model = %q", cfg.Completion.Model)
	}
	if cfg.Completion.Temperature != 0.7 {
		t.Errorf("Completion.Temperature = %v, want 0.7", cfg.Completion.Temperature)
	}
	if cfg.Completion.MaxTokens != 25000 {
		t.Errorf("Completion.MaxTokens = %d, want 25000", cfg.Completion.MaxTokens)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Completion.APIKey != "" {
		t.Errorf("Completion.APIKey = %q, want empty", cfg.Completion.APIKey)
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server.port": 5000,
  "completion.model": "llama-3.3-70b",
  "completion.temperature": 0.2,
  "completion.max_tokens": "4096",
  "completion.api_key": "ignored-from-file"
}`)

	cfg, err := loadWith(newFileBackend(path), noSecrets(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Completion.Model != "llama-3.3-70b" {
		t.Errorf("Completion.Model = %q", cfg.Completion.Model)
	}
	if cfg.Completion.Temperature != 0.2 {
		t.Errorf("Completion.Temperature = %v, want 0.2", cfg.Completion.Temperature)
	}
	if cfg.Completion.MaxTokens != 4096 {
		t.Errorf("Completion.MaxTokens = %d, want 4096", cfg.Completion.MaxTokens)
	}
	if cfg.Completion.APIKey != "" {
		t.Errorf("API key read from config file: %q", cfg.Completion.APIKey)
	}
}

func TestInvalidIntInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server.port": 4.5}`)

	if _, err := loadWith(newFileBackend(path), noSecrets(t)); err == nil {
		t.Error("expected error for non-integer port")
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server.port": 5000}`)

	t.Setenv("BIZPULSE_SERVER_PORT", "6000")
	t.Setenv("BIZPULSE_COMPLETION_TEMPERATURE", "1.1")
	t.Setenv("BIZPULSE_COMPLETION_API_KEY", "env-key")

	cfg, err := loadWith(newFileBackend(path), noSecrets(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Completion.Temperature != 1.1 {
		t.Errorf("Completion.Temperature = %v, want 1.1", cfg.Completion.Temperature)
	}
	if cfg.Completion.APIKey != "env-key" {
		t.Errorf("Completion.APIKey = %q, want env-key", cfg.Completion.APIKey)
	}
}

func TestEnvInvalidIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("BIZPULSE_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{}`)), noSecrets(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
}

func TestSecretsFileFallback(t *testing.T) {
	clearEnv(t)
	secrets := noSecrets(t)
	if err := secrets.Set(apiKeyName, "file-secret\n"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{}`)), secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Completion.APIKey != "file-secret" {
		t.Errorf("Completion.APIKey = %q, want file-secret", cfg.Completion.APIKey)
	}

	// Environment wins over the secrets file.
	t.Setenv(apiKeyEnv, "env-secret")
	cfg, _ = loadWith(newFileBackend(writeTempConfig(t, `{}`)), secrets)
	if cfg.Completion.APIKey != "env-secret" {
		t.Errorf("Completion.APIKey = %q, want env-secret", cfg.Completion.APIKey)
	}

	info, err := os.Stat(secrets.path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if !strings.Contains(err.Error(), apiKeyEnv) {
		t.Errorf("error does not mention %s: %v", apiKeyEnv, err)
	}

	cfg, err := LoadForDisplay()
	if err != nil {
		t.Fatalf("LoadForDisplay: %v", err)
	}
	if cfg.Storage.DataDir != filepath.Join(dir, "data", "bizpulse") {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(apiKeyEnv, "gsk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Completion.APIKey != "gsk-test" {
		t.Errorf("Completion.APIKey = %q", cfg.Completion.APIKey)
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	if err := SetKey("server.port", "4200"); err != nil {
		t.Fatalf("SetKey(server.port): %v", err)
	}
	if err := SetKey("completion.temperature", "0.3"); err != nil {
		t.Fatalf("SetKey(completion.temperature): %v", err)
	}
	if err := SetKey(apiKeyName, "gsk-secret"); err != nil {
		t.Fatalf("SetKey(api key): %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.Completion.Temperature != 0.3 {
		t.Errorf("Completion.Temperature = %v, want 0.3", cfg.Completion.Temperature)
	}
	if cfg.Completion.APIKey != "gsk-secret" {
		t.Errorf("Completion.APIKey = %q", cfg.Completion.APIKey)
	}

	data, _ := os.ReadFile(configFilePath())
	if strings.Contains(string(data), "gsk-secret") {
		t.Error("secret written to the config file")
	}
}

func TestSetKeyErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)

	tests := []struct {
		key, value string
	}{
		{"nope.key", "x"},
		{"server.port", "abc"},
		{"completion.temperature", "warm"},
	}
	for _, tt := range tests {
		if err := SetKey(tt.key, tt.value); err == nil {
			t.Errorf("SetKey(%q, %q) = nil, want error", tt.key, tt.value)
		}
	}
}

func TestShowAllMasksSecret(t *testing.T) {
	cfg := defaults()
	cfg.Completion.APIKey = "gsk-abcdef1234"

	var found bool
	for _, ki := range ShowAll(cfg) {
		if ki.Key == apiKeyName {
			found = true
			if ki.Value != "****1234" {
				t.Errorf("masked value = %q, want ****1234", ki.Value)
			}
		}
	}
	if !found {
		t.Error("api key missing from ShowAll")
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Fatalf("ValidKeys = %d keys, want %d", len(keys), len(specs))
	}
	for _, want := range []string{"server.port", "completion.model", "log.level", apiKeyName} {
		found := false
		for _, k := range keys {
			if k == want {
				found = true
			}
		}
		if !found {
			t.Errorf("ValidKeys missing %q", want)
		}
	}
}
