package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zachfi/icystream/pkg/icy"
)

var module = "monitor"

// Monitor keeps a connection open to each configured station, logs track
// changes, and exports per-station counters. It records nothing to disk.
type Monitor struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	metrics *metrics

	mtx   sync.Mutex
	state map[string]*stationState
}

// stationState is the last observed status of one watched stream.
type stationState struct {
	URL        string    `json:"url"`
	Name       string    `json:"name,omitempty"`
	Connected  bool      `json:"connected"`
	Title      string    `json:"title,omitempty"`
	LastChange time.Time `json:"last_change"`
}

func New(cfg Config, logger slog.Logger, reg prometheus.Registerer) (*Monitor, error) {
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = defaultReconnectInitial
	}
	if cfg.ReconnectBackoffMax == 0 {
		cfg.ReconnectBackoffMax = defaultReconnectMax
	}
	m := &Monitor{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		metrics: newMetrics(reg),
		state:   make(map[string]*stationState, len(cfg.Stations)),
	}
	for _, url := range cfg.Stations {
		m.state[url] = &stationState{URL: url}
	}

	m.Service = services.NewBasicService(m.starting, m.running, m.stopping)

	return m, nil
}

func (m *Monitor) starting(ctx context.Context) error {
	m.logger.Info("starting", "stations", len(m.cfg.Stations))
	return nil
}

func (m *Monitor) running(ctx context.Context) error {
	if len(m.cfg.Stations) == 0 {
		m.logger.Info("no stations configured, monitor idle")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, url := range m.cfg.Stations {
		url := url // per-iteration copy: required while go.mod targets go < 1.22
		g.Go(func() error {
			m.watch(ctx, url)
			return nil
		})
	}
	return g.Wait()
}

func (m *Monitor) stopping(_ error) error {
	m.logger.Info("stopping")
	return nil
}

// watch keeps one station connected until ctx is canceled, backing off
// between attempts and resetting the backoff after each successful connect.
func (m *Monitor) watch(ctx context.Context, url string) {
	logger := m.logger.With("station", url)

	boff := backoff.New(ctx, backoff.Config{
		MinBackoff: m.cfg.ReconnectBackoff,
		MaxBackoff: m.cfg.ReconnectBackoffMax,
	})

	for boff.Ongoing() {
		stream, err := icy.Open(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("connect failed", "err", err, "attempt", boff.NumRetries())
			boff.Wait()
			continue
		}
		boff.Reset()
		m.metrics.connects.WithLabelValues(url).Inc()

		name := stream.Headers.Name
		logger.Info("connected", "name", name, "bitrate", stream.Headers.Bitrate)
		m.setConnected(url, true, name)

		stream.OnFrame = func(_ *icy.Metadata, err error) {
			if err != nil {
				m.metrics.decodeFailures.WithLabelValues(url).Inc()
				return
			}
			m.metrics.framesDecoded.WithLabelValues(url).Inc()
		}
		stream.OnChange = func(md *icy.Metadata) {
			title, ok := md.StreamTitle()
			if !ok {
				return
			}
			m.metrics.trackChanges.WithLabelValues(url).Inc()
			logger.Info("track change", "name", name, "title", title)
			m.setTitle(url, title)
		}

		_, err = io.Copy(countingWriter{c: m.metrics.readBytes.WithLabelValues(url)}, stream)
		_ = stream.Close()
		m.setConnected(url, false, name)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("stream read failed", "err", err)
		} else {
			logger.Warn("stream ended")
		}
		boff.Wait()
	}
}

func (m *Monitor) setConnected(url string, connected bool, name string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	st, ok := m.state[url]
	if !ok {
		return
	}
	st.Connected = connected
	if name != "" {
		st.Name = name
	}
}

func (m *Monitor) setTitle(url, title string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	st, ok := m.state[url]
	if !ok {
		return
	}
	st.Title = title
	st.LastChange = time.Now()
}

// Handler serves the status of every watched station as JSON, in
// configuration order.
func (m *Monitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		m.mtx.Lock()
		out := make([]stationState, 0, len(m.cfg.Stations))
		for _, url := range m.cfg.Stations {
			if st, ok := m.state[url]; ok {
				out = append(out, *st)
			}
		}
		m.mtx.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			m.logger.Error("error encoding station status", "err", err)
		}
	})
}

// countingWriter feeds io.Copy while counting audio bytes as they arrive.
type countingWriter struct {
	c prometheus.Counter
}

func (w countingWriter) Write(p []byte) (int, error) {
	w.c.Add(float64(len(p)))
	return len(p), nil
}
