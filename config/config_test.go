package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadSuccess(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
servers = ["10.0.0.1:11211", "10.0.0.2:11211"]
namespace = "builds"
debug = true
default_ttl = "5m"
compress_threshold = 16384
dial_timeout = "500ms"
op_timeout = "2s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	wantServers := []string{"10.0.0.1:11211", "10.0.0.2:11211"}
	if !slices.Equal(cfg.Servers, wantServers) {
		t.Fatalf("unexpected servers: %v", cfg.Servers)
	}
	if cfg.Namespace != "builds" {
		t.Fatalf("unexpected namespace: %q", cfg.Namespace)
	}
	if !cfg.Debug {
		t.Fatal("expected debug enabled")
	}
	if cfg.DefaultTTL != Duration(5*time.Minute) {
		t.Fatalf("unexpected default_ttl: %v", time.Duration(cfg.DefaultTTL))
	}
	if cfg.CompressThreshold != 16384 {
		t.Fatalf("unexpected compress_threshold: %d", cfg.CompressThreshold)
	}
	if cfg.DialTimeout != Duration(500*time.Millisecond) {
		t.Fatalf("unexpected dial_timeout: %v", time.Duration(cfg.DialTimeout))
	}
	if cfg.OpTimeout != Duration(2*time.Second) {
		t.Fatalf("unexpected op_timeout: %v", time.Duration(cfg.OpTimeout))
	}
	if !cfg.Enabled() {
		t.Fatal("expected Enabled() with servers configured")
	}
}

func TestLoadMinimal(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Namespace != "" {
		t.Fatalf("expected empty namespace, got %q", cfg.Namespace)
	}
	if cfg.DefaultTTL != 0 || cfg.DialTimeout != 0 || cfg.OpTimeout != 0 {
		t.Fatalf("expected zero durations, got %+v", cfg)
	}
	if cfg.Debug {
		t.Fatal("expected debug disabled")
	}
}

func TestLoadNoServers(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
namespace = "builds"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Enabled() {
		t.Fatal("expected Enabled() == false with no servers")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got: %v", err)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
servers = [
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for malformed TOML")
	}
	if !strings.Contains(err.Error(), configPath) {
		t.Fatalf("error should name the file, got: %v", err)
	}
}

func TestLoadUnknownKeys(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
sevrers = ["127.0.0.1:11212"]
extra = true
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for unknown keys")
	}
	if !strings.Contains(err.Error(), "unknown configuration keys") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "extra, sevrers") {
		t.Fatalf("error should list offending keys sorted, got: %v", err)
	}
}

func TestLoadExpandsServerVars(t *testing.T) {
	t.Setenv("CACHE_HOST", "10.0.0.9")

	configPath := writeConfig(t, t.TempDir(), `
servers = ["${CACHE_HOST}:11211"]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.Servers[0]; got != "10.0.0.9:11211" {
		t.Fatalf("expected expanded server, got %q", got)
	}
}

func TestLoadExpandsNamespace(t *testing.T) {
	t.Setenv("TEAM", "platform")

	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
namespace = "${TEAM}-builds"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Namespace != "platform-builds" {
		t.Fatalf("expected expanded namespace, got %q", cfg.Namespace)
	}
}

func TestLoadMissingVarErrors(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
servers = ["${CACHEOPS_TEST_NO_SUCH_HOST}:11211"]
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for unset variable")
	}
	if !strings.Contains(err.Error(), "CACHEOPS_TEST_NO_SUCH_HOST") {
		t.Fatalf("error should name the variable, got: %v", err)
	}
}

func TestLoadDollarEscape(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
namespace = "team$$cache"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Namespace != "team$cache" {
		t.Fatalf("expected literal dollar, got %q", cfg.Namespace)
	}
}

func TestLoadEnvServersOverride(t *testing.T) {
	t.Setenv(EnvServers, "10.1.1.1:11211, 10.1.1.2:11211")

	configPath := writeConfig(t, t.TempDir(), `
servers = ["10.0.0.1:11211"]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := []string{"10.1.1.1:11211", "10.1.1.2:11211"}
	if !slices.Equal(cfg.Servers, want) {
		t.Fatalf("expected env servers to win, got %v", cfg.Servers)
	}
}

func TestLoadEnvNamespaceOverride(t *testing.T) {
	t.Setenv(EnvNamespace, "ci")

	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
namespace = "builds"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Namespace != "ci" {
		t.Fatalf("expected env namespace to win, got %q", cfg.Namespace)
	}
}

func TestLoadEnvDebugOverride(t *testing.T) {
	t.Setenv(EnvDebug, "true")

	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
debug = false
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.Debug {
		t.Fatal("expected env debug to win")
	}
}

func TestLoadEnvDebugInvalid(t *testing.T) {
	t.Setenv(EnvDebug, "maybe")

	configPath := writeConfig(t, t.TempDir(), `
servers = ["127.0.0.1:11211"]
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid debug value")
	}
	if !strings.Contains(err.Error(), EnvDebug) {
		t.Fatalf("error should name the variable, got: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvServers, "cache1:11211,cache2:11211")
	t.Setenv(EnvNamespace, "ci")
	t.Setenv(EnvDebug, "1")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}

	want := []string{"cache1:11211", "cache2:11211"}
	if !slices.Equal(cfg.Servers, want) {
		t.Fatalf("unexpected servers: %v", cfg.Servers)
	}
	if cfg.Namespace != "ci" {
		t.Fatalf("unexpected namespace: %q", cfg.Namespace)
	}
	if !cfg.Debug {
		t.Fatal("expected debug enabled")
	}
}

func TestFromEnvEmpty(t *testing.T) {
	for _, key := range []string{EnvServers, EnvNamespace, EnvDebug} {
		// Setenv registers the restore, Unsetenv clears for this test.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if cfg.Enabled() {
		t.Fatal("expected caching disabled with no environment")
	}
}

func TestSplitServers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "127.0.0.1:11211", []string{"127.0.0.1:11211"}},
		{"multiple", "a:11211,b:11211", []string{"a:11211", "b:11211"}},
		{"spaces", " a:11211 , b:11211 ", []string{"a:11211", "b:11211"}},
		{"trailing comma", "a:11211,", []string{"a:11211"}},
		{"empty", "", nil},
		{"only commas", ",,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitServers(tt.input); !slices.Equal(got, tt.want) {
				t.Fatalf("SplitServers(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "500ms", want: 500 * time.Millisecond},
		{input: "2h45m", want: 2*time.Hour + 45*time.Minute},
		{input: "0s", want: 0},
		{input: "fast", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalText(%q) error = %v", tt.input, err)
			}
			if time.Duration(d) != tt.want {
				t.Fatalf("UnmarshalText(%q) = %v, want %v", tt.input, time.Duration(d), tt.want)
			}
		})
	}
}

func TestCacheConfig(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Servers:           []string{"127.0.0.1:11211"},
		Namespace:         "builds",
		Debug:             true,
		DefaultTTL:        Duration(time.Minute),
		CompressThreshold: 1024,
		DialTimeout:       Duration(250 * time.Millisecond),
		OpTimeout:         Duration(time.Second),
	}

	cc := cfg.CacheConfig()

	if !slices.Equal(cc.Servers, cfg.Servers) {
		t.Fatalf("unexpected servers: %v", cc.Servers)
	}
	if cc.Namespace != "builds" || !cc.Debug {
		t.Fatalf("unexpected namespace/debug: %q %v", cc.Namespace, cc.Debug)
	}
	if cc.DefaultTTL != time.Minute {
		t.Fatalf("unexpected default TTL: %v", cc.DefaultTTL)
	}
	if cc.CompressThreshold != 1024 {
		t.Fatalf("unexpected compress threshold: %d", cc.CompressThreshold)
	}
	if cc.DialTimeout != 250*time.Millisecond || cc.OpTimeout != time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cc.DialTimeout, cc.OpTimeout)
	}
}

func writeConfig(tb testing.TB, dir, contents string) string {
	tb.Helper()

	path := filepath.Join(dir, "cacheops.toml")
	clean := strings.TrimSpace(contents) + "\n"
	if err := os.WriteFile(path, []byte(clean), 0o600); err != nil {
		tb.Fatalf("write config: %v", err)
	}
	return path
}
