package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so tests start from defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT",
		"IDLE_TIMEOUT", "MAX_HEADER_BYTES", "GIN_MODE",
		"LOG_LEVEL", "LOG_PRETTY",
		"DB_PATH", "API_BASE_PATH",
		"WS_READ_LIMIT", "WS_SEND_BUFFER", "WS_WRITE_WAIT", "WS_PONG_WAIT",
		"WS_PING_PERIOD", "WS_ALLOW_ANONYMOUS",
		"BROKER_DRIVER", "NATS_URL",
		"RATE_RPS", "RATE_BURST",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
		"OTEL_TRACES_SAMPLER_ARG",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port default = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode default = %q", cfg.GinMode)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel default = %q", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/comms" {
		t.Errorf("APIBasePath default = %q", cfg.APIBasePath)
	}
	if !cfg.WS.AllowAnonymous {
		t.Errorf("WS.AllowAnonymous should default to true")
	}
	if cfg.WS.PingPeriod >= cfg.WS.PongWait {
		t.Errorf("default ping period %v must be < pong wait %v", cfg.WS.PingPeriod, cfg.WS.PongWait)
	}
	if cfg.Broker.Driver != "memory" {
		t.Errorf("Broker.Driver default = %q", cfg.Broker.Driver)
	}
}

func TestLoad_NormalizesLevelAndMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q; want release fallback", cfg.GinMode)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"zero send buffer", map[string]string{"WS_SEND_BUFFER": "0"}, "WS_SEND_BUFFER"},
		{"ping >= pong", map[string]string{"WS_PING_PERIOD": "2m", "WS_PONG_WAIT": "1m"}, "WS_PING_PERIOD"},
		{"bad broker", map[string]string{"BROKER_DRIVER": "kafka"}, "BROKER_DRIVER"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"bad sampler", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "2"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_WSAndBrokerOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WS_READ_LIMIT", "1024")
	t.Setenv("WS_ALLOW_ANONYMOUS", "false")
	t.Setenv("BROKER_DRIVER", "nats")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("WS_PONG_WAIT", "30s")
	t.Setenv("WS_PING_PERIOD", "25s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WS.ReadLimit != 1024 {
		t.Errorf("ReadLimit = %d", cfg.WS.ReadLimit)
	}
	if cfg.WS.AllowAnonymous {
		t.Errorf("AllowAnonymous should be false")
	}
	if cfg.WS.PongWait != 30*time.Second || cfg.WS.PingPeriod != 25*time.Second {
		t.Errorf("pong/ping = %v/%v", cfg.WS.PongWait, cfg.WS.PingPeriod)
	}
	if cfg.Broker.Driver != "nats" || cfg.Broker.NATSURL != "nats://broker:4222" {
		t.Errorf("broker = %+v", cfg.Broker)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"comms":   "/comms",
		"/comms/": "/comms",
		"/a/b/":   "/a/b",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	defer func() {
		if recover() == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	MustLoad()
}
