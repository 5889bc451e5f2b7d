package pkg

import (
	"testing"
	"time"
)

type testConfig struct {
	Name     string        `env:"TEST_CFG_NAME" envDefault:"gateway"`
	Port     int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	Debug    bool          `env:"TEST_CFG_DEBUG" envDefault:"true"`
	Scale    float64       `env:"TEST_CFG_SCALE" envDefault:"1.5"`
	Timeout  time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"15m"`
	Untagged string
}

func TestSetConfigFromEnvVarsAppliesDefaults(t *testing.T) {
	var cfg testConfig
	if err := SetConfigFromEnvVars(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "gateway" || cfg.Port != 8080 || !cfg.Debug || cfg.Scale != 1.5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	if cfg.Timeout != 15*time.Minute {
		t.Fatalf("expected 15m timeout, got %s", cfg.Timeout)
	}

	if cfg.Untagged != "" {
		t.Fatalf("untagged field should be left alone, got %q", cfg.Untagged)
	}
}

func TestSetConfigFromEnvVarsPrefersEnvironment(t *testing.T) {
	t.Setenv("TEST_CFG_NAME", "override")
	t.Setenv("TEST_CFG_TIMEOUT", "2h")

	var cfg testConfig
	if err := SetConfigFromEnvVars(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "override" {
		t.Fatalf("expected environment override, got %q", cfg.Name)
	}

	if cfg.Timeout != 2*time.Hour {
		t.Fatalf("expected 2h timeout, got %s", cfg.Timeout)
	}
}

func TestSetConfigFromEnvVarsRequiresPointer(t *testing.T) {
	var cfg testConfig
	if err := SetConfigFromEnvVars(cfg); err == nil {
		t.Fatal("expected an error for a non-pointer argument")
	}
}
