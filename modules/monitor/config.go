package monitor

import (
	"flag"
	"strings"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultReconnectInitial = 5 * time.Second
	defaultReconnectMax     = 60 * time.Second
)

type Config struct {
	Stations            []string      `yaml:"stations,omitempty"`
	ReconnectBackoff    time.Duration `yaml:"reconnect-backoff,omitempty"`
	ReconnectBackoffMax time.Duration `yaml:"reconnect-backoff-max,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.Var(newStationsValue(&cfg.Stations), util.PrefixConfig(prefix, "stations"),
		"Comma-separated list of stream URLs to watch")
	f.DurationVar(&cfg.ReconnectBackoff, util.PrefixConfig(prefix, "reconnect-backoff"), defaultReconnectInitial,
		"Initial delay before reconnecting a dropped station. Exponential backoff is used up to reconnect-backoff-max.")
	f.DurationVar(&cfg.ReconnectBackoffMax, util.PrefixConfig(prefix, "reconnect-backoff-max"), defaultReconnectMax,
		"Maximum delay between reconnection attempts.")
}

// stationsValue parses a comma-separated flag into the Stations slice. The
// yaml form stays a plain list.
type stationsValue struct {
	p *[]string
}

func newStationsValue(p *[]string) *stationsValue { return &stationsValue{p: p} }

func (v *stationsValue) String() string {
	if v.p == nil {
		return ""
	}
	return strings.Join(*v.p, ",")
}

func (v *stationsValue) Set(s string) error {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*v.p = out
	return nil
}
