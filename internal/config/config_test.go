package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROPTEST_PORT", "")
	t.Setenv("PROPTEST_FILES", "")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if len(cfg.Files) != 2 {
		t.Fatalf("expected default property files, got %v", cfg.Files)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Serve {
		t.Fatalf("serving must be off by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROPTEST_PORT", "9000")
	t.Setenv("PROPTEST_FILES", "a.properties,b.yaml")
	t.Setenv("PROPTEST_SYSTEM_PROPERTIES", "profile:dev")
	t.Setenv("PROPTEST_RATE_LIMIT_RPS", "3.5")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if len(cfg.Files) != 2 || cfg.Files[1] != "b.yaml" {
		t.Fatalf("unexpected files: %v", cfg.Files)
	}
	if cfg.SystemProperties["profile"] != "dev" {
		t.Fatalf("unexpected system properties: %v", cfg.SystemProperties)
	}
	if cfg.RateLimitRPS != 3.5 {
		t.Fatalf("unexpected rate limit: %v", cfg.RateLimitRPS)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proptest.yaml")
	content := `
files: [from-yaml.properties]
port: "7000"
log_level: debug
system_properties:
  region: eu
  profile: yaml
shutdown_grace_period: 2s
rate_limit:
  rps: 1
  burst: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PROPTEST_PORT", "7100")
	t.Setenv("PROPTEST_SYSTEM_PROPERTIES", "profile:env")

	port := "7200"
	cfg, err := Load(&CLIOverrides{
		ConfigFile:       path,
		Port:             &port,
		SystemProperties: map[string]string{"user": "cli"},
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7200" {
		t.Fatalf("CLI should win, got port %s", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected YAML log level, got %s", cfg.LogLevel)
	}
	if cfg.Files[0] != "from-yaml.properties" {
		t.Fatalf("expected YAML files, got %v", cfg.Files)
	}
	if cfg.ShutdownGracePeriod != 2*time.Second {
		t.Fatalf("unexpected grace period: %s", cfg.ShutdownGracePeriod)
	}
	want := map[string]string{"region": "eu", "profile": "env", "user": "cli"}
	for k, v := range want {
		if cfg.SystemProperties[k] != v {
			t.Fatalf("system property %s: expected %q, got %q", k, v, cfg.SystemProperties[k])
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Run("log level", func(t *testing.T) {
		level := "loud"
		if _, err := Load(&CLIOverrides{LogLevel: &level}); err == nil {
			t.Fatalf("expected error for invalid log level")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		if _, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
			t.Fatalf("expected error for missing config file")
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("idle_timeout: soon\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(&CLIOverrides{ConfigFile: path}); err == nil {
			t.Fatalf("expected error for invalid duration")
		}
	})

	t.Run("negative burst from env", func(t *testing.T) {
		t.Setenv("PROPTEST_RATE_LIMIT_BURST", "-1")
		if _, err := Load(nil); err == nil {
			t.Fatalf("expected error for negative burst")
		}
	})
}
