package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeBackend is an in-memory ConfigBackend for tests.
type fakeBackend struct {
	strings map[string]string
	ints    map[string]int
}

func (f *fakeBackend) GetString(key string) (string, bool, error) {
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeBackend) GetInt(key string) (int, bool, error) {
	v, ok := f.ints[key]
	return v, ok, nil
}

func (f *fakeBackend) SetString(key, val string) error {
	f.strings[key] = val
	return nil
}

func (f *fakeBackend) SetInt(key string, val int) error {
	f.ints[key] = val
	return nil
}

func (f *fakeBackend) Delete(key string) error {
	delete(f.strings, key)
	delete(f.ints, key)
	return nil
}

func emptyBackend() *fakeBackend {
	return &fakeBackend{strings: map[string]string{}, ints: map[string]int{}}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4400 {
		t.Errorf("Server.Port = %d, want 4400", cfg.Server.Port)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Retention.Days != 180 {
		t.Errorf("Retention.Days = %d, want 180", cfg.Retention.Days)
	}
	if cfg.Insights.Window != 500 {
		t.Errorf("Insights.Window = %d, want 500", cfg.Insights.Window)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	clearEnv(t)

	b := emptyBackend()
	b.ints["server.port"] = 9000
	b.strings["log.level"] = "debug"
	b.ints["retention.days"] = 30

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Retention.Days != 30 {
		t.Errorf("Retention.Days = %d, want 30", cfg.Retention.Days)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMPROVER_SERVER_PORT", "5500")
	t.Setenv("IMPROVER_LOG_LEVEL", "warn")

	b := emptyBackend()
	b.ints["server.port"] = 9000
	b.strings["log.level"] = "debug"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5500 {
		t.Errorf("Server.Port = %d, want 5500", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestInvalidIntEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMPROVER_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4400 {
		t.Errorf("Server.Port = %d, want default 4400", cfg.Server.Port)
	}
}

func TestShowAllCoversEveryKey(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(specs) {
		t.Fatalf("ShowAll returned %d entries, want %d", len(infos), len(specs))
	}
	for _, info := range infos {
		if info.Key == "" || info.EnvVar == "" {
			t.Errorf("incomplete key info: %+v", info)
		}
	}
}

func TestEnsureTokenGeneratesAndPersists(t *testing.T) {
	t.Setenv(tokenEnv, "")
	dir := filepath.Join(t.TempDir(), "data")

	tok, err := EnsureToken(dir)
	if err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}
	if tok == "" {
		t.Fatal("empty token")
	}

	info, err := os.Stat(filepath.Join(dir, "token"))
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	// Second call returns the same token.
	again, err := EnsureToken(dir)
	if err != nil {
		t.Fatalf("EnsureToken second call: %v", err)
	}
	if again != tok {
		t.Errorf("token changed between calls: %q vs %q", tok, again)
	}
}

func TestEnsureTokenEnvOverride(t *testing.T) {
	t.Setenv(tokenEnv, "env-token")

	tok, err := EnsureToken(t.TempDir())
	if err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}
	if tok != "env-token" {
		t.Errorf("token = %q, want env-token", tok)
	}
}

func TestSetKeyUnknown(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("writes through the UserDefaults backend")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := SetKey("no.such.key", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("writes through the UserDefaults backend")
	}
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("server.port", "6123"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 6123 {
		t.Errorf("Server.Port = %d, want 6123", cfg.Server.Port)
	}
}
