package monitor

import (
	"flag"
	"testing"
	"time"

	yaml "gopkg.in/yaml.v2"
)

func TestConfigFlags(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlagsAndApplyDefaults("monitor", fs)

	err := fs.Parse([]string{
		"-monitor.stations", "http://a, http://b,,http://c",
		"-monitor.reconnect-backoff", "1s",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []string{"http://a", "http://b", "http://c"}
	if len(cfg.Stations) != len(want) {
		t.Fatalf("stations = %v, want %v", cfg.Stations, want)
	}
	for i := range want {
		if cfg.Stations[i] != want[i] {
			t.Errorf("stations[%d] = %q, want %q", i, cfg.Stations[i], want[i])
		}
	}
	if cfg.ReconnectBackoff != time.Second {
		t.Errorf("reconnect backoff = %v, want 1s", cfg.ReconnectBackoff)
	}
	if cfg.ReconnectBackoffMax != defaultReconnectMax {
		t.Errorf("reconnect backoff max = %v, want %v", cfg.ReconnectBackoffMax, defaultReconnectMax)
	}
}

func TestConfigYAML(t *testing.T) {
	doc := "stations:\n  - http://a/stream\n  - http://b/stream\n"

	var cfg Config
	if err := yaml.UnmarshalStrict([]byte(doc), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cfg.Stations) != 2 || cfg.Stations[0] != "http://a/stream" || cfg.Stations[1] != "http://b/stream" {
		t.Errorf("stations = %v", cfg.Stations)
	}
}
