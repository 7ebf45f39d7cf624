package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"LOG_LEVEL", "SERVICE_NAME", "FUZZ_TIMEOUT", "MAX_PACKETS", "MAX_TOKENS", "STATS_INTERVAL", "FUZZ_CORES", "OVERRIDE_REDIS_URL", "REDIS_SENTINEL_HOSTS", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()
	if cfg.LogLevel != "info" || cfg.ServiceName != "desockfuzz" {
		t.Errorf("log level %q service %q", cfg.LogLevel, cfg.ServiceName)
	}
	c := cfg.Campaign
	if c.Cores != "0" {
		t.Errorf("cores default %q", c.Cores)
	}
	if c.Timeout != 5*time.Second || c.MaxPackets != 16 || c.MaxTokens != 16 || c.StatsInterval != time.Minute {
		t.Errorf("campaign defaults %+v", c)
	}
	if cfg.Telemetry() || cfg.Redis() {
		t.Error("backends enabled without configuration")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FUZZ_TIMEOUT", "250ms")
	t.Setenv("MAX_PACKETS", "4")
	t.Setenv("MAX_TOKENS", "-3")
	t.Setenv("OVERRIDE_REDIS_URL", "redis://localhost:6379/0")
	cfg := LoadConfig()
	if cfg.Campaign.Timeout != 250*time.Millisecond || cfg.Campaign.MaxPackets != 4 {
		t.Errorf("overrides ignored: %+v", cfg.Campaign)
	}
	if cfg.Campaign.MaxTokens != 16 {
		t.Errorf("negative MAX_TOKENS kept: %d", cfg.Campaign.MaxTokens)
	}
	if !cfg.Redis() {
		t.Error("redis url not detected")
	}
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 7},
		{"12", 12},
		{"x", 7},
	}
	for _, tt := range tests {
		if got := parseInt(tt.in, 7); got != tt.want {
			t.Errorf("parseInt(%q) = %d", tt.in, got)
		}
	}
	if got := parseDuration("bogus", time.Second); got != time.Second {
		t.Errorf("parseDuration fallback = %s", got)
	}
}
