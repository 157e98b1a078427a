package ripper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"

	"github.com/zachfi/icystream/pkg/icy"
)

var module = "ripper"

// writerQueueDepth bounds the handoff channel between the stream copy loop
// and the track writer. At typical webradio bitrates this holds minutes of
// audio, enough to ride out slow disk or NFS hiccups.
const writerQueueDepth = 10240

// minWriteBufSize and maxWriteBufSize clamp the configured write buffer to
// avoid tiny writes (no benefit) or very large buffers (memory and latency).
const (
	minWriteBufSize = 32 * 1024
	maxWriteBufSize = 4 * 1024 * 1024
)

type Ripper struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	stream *icy.Stream
	w      *ChannelWriter

	writerWg sync.WaitGroup // live track-writer goroutines
}

// New creates the ripper service: it connects to the configured stream and
// records each track into its own file, named from the in-stream metadata.
func New(cfg Config, logger slog.Logger) (*Ripper, error) {
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = defaultWriteBufferSize
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = defaultReconnectInitial
	}
	if cfg.ReconnectBackoffMax == 0 {
		cfg.ReconnectBackoffMax = defaultReconnectMax
	}
	r := &Ripper{
		cfg:    &cfg,
		logger: logger.With("module", module),
	}

	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)

	return r, nil
}

func (r *Ripper) starting(ctx context.Context) error {
	if r.cfg.URL == "" {
		r.logger.Info("no url configured, ripper idle")
		return nil
	}

	stream, err := icy.Open(ctx, r.cfg.URL)
	if err != nil {
		r.logger.Error("error opening stream", "err", err)
		return err
	}

	r.stream = stream
	r.logger.Info("stream open",
		"station", stream.Headers.Name,
		"bitrate", stream.Headers.Bitrate,
		"metaint", stream.Headers.MetadataInterval)

	return nil
}

func (r *Ripper) running(ctx context.Context) error {
	if r.stream == nil {
		<-ctx.Done()
		return nil
	}

	cw := NewChannelWriter(writerQueueDepth)
	r.w = cw

	// Track rotation state. Only the metadata callback touches these; the
	// stream reader serializes callbacks.
	var (
		current    string
		cancel     context.CancelFunc
		writerDone chan struct{} // closed when the current writer goroutine exits
	)

	onChange := func(m *icy.Metadata) {
		title, ok := m.StreamTitle()
		if !ok || title == "" {
			return
		}
		r.logger.Info("now listening to", "title", title)

		name := r.trackPath(title)
		if name == current {
			return
		}

		if err := os.MkdirAll(path.Dir(name), os.ModePerm); err != nil {
			r.logger.Error("error creating stream directory", "err", err)
			return
		}

		// Cancel the previous writer, then wait for it to exit so only one
		// goroutine reads from the channel at a time (avoids splitting the
		// stream).
		if cancel != nil {
			cancel()
		}
		if writerDone != nil {
			<-writerDone
		}
		current = name

		f, err := os.CreateTemp(path.Dir(name), "*.mp3.tmp")
		if err != nil {
			r.logger.Error("error creating temp file", "err", err)
			return
		}

		var wCtx context.Context
		wCtx, cancel = context.WithCancel(ctx)
		writerDone = make(chan struct{})
		done := writerDone
		r.logger.Debug("starting new writer", "path", name)
		r.writerWg.Add(1)
		go func() {
			defer r.writerWg.Done()
			defer close(done)
			r.writeTrack(wCtx, cw.ch, f, name)
		}()
	}

	r.stream.OnChange = onChange

	boff := backoff.New(ctx, backoff.Config{
		MinBackoff: r.cfg.ReconnectBackoff,
		MaxBackoff: r.cfg.ReconnectBackoffMax,
	})

	for {
		n, err := io.Copy(cw, r.stream)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && err != io.EOF {
			r.logger.Error("stream read failed", "err", err, "read", ByteCountIEC(n))
		} else {
			r.logger.Warn("stream ended", "read", ByteCountIEC(n))
		}
		_ = r.stream.Close()

		if !r.reconnect(ctx, boff, onChange) {
			return nil
		}
	}
}

// reconnect reopens the stream, backing off between attempts. It reports
// false when the service is shutting down.
func (r *Ripper) reconnect(ctx context.Context, boff *backoff.Backoff, onChange icy.MetadataCallbackFunc) bool {
	for boff.Ongoing() {
		boff.Wait()
		if ctx.Err() != nil {
			return false
		}

		stream, err := icy.Open(ctx, r.cfg.URL)
		if err != nil {
			r.logger.Warn("reconnect failed", "err", err, "attempt", boff.NumRetries())
			continue
		}
		stream.OnChange = onChange
		r.stream = stream
		boff.Reset()
		r.logger.Info("reconnected", "station", stream.Headers.Name)
		return true
	}
	return false
}

func (r *Ripper) stopping(_ error) error {
	r.logger.Info("stopping")

	var errs []error
	// running has returned by the time stopping runs, so the copy loop is
	// gone. Closing the channel lets the current writer drain and commit.
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.w != nil {
		if err := r.w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.writerWg.Wait()

	return errors.Join(errs...)
}

// trackPath is where a track with the given title gets recorded, one
// directory per station.
func (r *Ripper) trackPath(title string) string {
	station := r.stream.Headers.Name
	if station == "" {
		station = "stream"
	}

	name := path.Join(sanitizePathElement(station), sanitizePathElement(title)+".mp3")
	if r.cfg.Dir != "" {
		return path.Join(r.cfg.Dir, name)
	}
	return name
}

// sanitizePathElement makes a station name or track title usable as a
// single path element.
func sanitizePathElement(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "untitled"
	}
	return s
}

func (r *Ripper) writeTrack(ctx context.Context, data <-chan []byte, f *os.File, destPath string) {
	writeBufSize := r.cfg.WriteBufferSize
	if writeBufSize < minWriteBufSize {
		writeBufSize = minWriteBufSize
	}
	if writeBufSize > maxWriteBufSize {
		writeBufSize = maxWriteBufSize
	}

	firstWrite := true
	syncBuf := make([]byte, 0, 4096)          // accumulates data until the first MP3 frame sync
	writeBuf := make([]byte, 0, writeBufSize) // batches writes to reduce disk I/O

	flush := func() bool {
		if len(writeBuf) == 0 {
			return true
		}
		if _, err := f.Write(writeBuf); err != nil {
			r.logger.Error("error writing to file", "err", err)
			return false
		}
		writeBuf = writeBuf[:0]
		return true
	}

	closeAndCommit := func() {
		tempPath := f.Name()
		if len(syncBuf) > 0 {
			if _, err := f.Write(syncBuf); err != nil {
				r.logger.Error("error writing to file", "err", err)
			}
		}
		flush()
		if err := f.Sync(); err != nil {
			r.logger.Error("error syncing file", "err", err)
		}
		if err := f.Close(); err != nil {
			r.logger.Error("error closing file", "err", err)
		}
		r.commitTempFile(tempPath, destPath)
	}

	for {
		select {
		case <-ctx.Done():
			// A new track started, or the service is shutting down.
			r.logger.Debug("context canceled, closing file")
			closeAndCommit()
			return
		case b, ok := <-data:
			if !ok {
				closeAndCommit()
				return
			}
			if len(b) == 0 {
				continue
			}

			if firstWrite {
				// Start the file on an MP3 frame boundary so players do not
				// choke on a torn frame from the mid-track join.
				syncBuf = append(syncBuf, b...)
				if pos := findFrameSync(syncBuf); pos >= 0 {
					writeBuf = append(writeBuf, syncBuf[pos:]...)
					syncBuf = syncBuf[:0]
					firstWrite = false
				} else if len(syncBuf) > maxSyncScan {
					r.logger.Warn("no MP3 frame sync found, writing unaligned")
					writeBuf = append(writeBuf, syncBuf...)
					syncBuf = syncBuf[:0]
					firstWrite = false
				}
				continue
			}

			writeBuf = append(writeBuf, b...)
			if len(writeBuf) >= writeBufSize {
				if !flush() {
					f.Close()
					return
				}
			}
		}
	}
}

// commitTempFile renames tempPath to destPath only if dest doesn't exist or
// the temp file is larger, so a reconnect mid-track doesn't overwrite a good
// recording with a partial one.
func (r *Ripper) commitTempFile(tempPath, destPath string) {
	tempInfo, err := os.Stat(tempPath)
	if err != nil {
		r.logger.Error("error stating temp file", "err", err, "path", tempPath)
		_ = os.Remove(tempPath)
		return
	}
	destInfo, err := os.Stat(destPath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Error("error stating dest file", "err", err, "path", destPath)
			_ = os.Remove(tempPath)
			return
		}
		if err := os.Rename(tempPath, destPath); err != nil {
			r.logger.Error("error renaming temp to dest", "err", err, "temp", tempPath, "dest", destPath)
			_ = os.Remove(tempPath)
			return
		}
		r.logger.Debug("saved new recording", "path", destPath)
		return
	}

	if tempInfo.Size() > destInfo.Size() {
		if err := os.Rename(tempPath, destPath); err != nil {
			r.logger.Error("error renaming temp to dest", "err", err, "temp", tempPath, "dest", destPath)
			_ = os.Remove(tempPath)
			return
		}
		r.logger.Debug("overwrote with longer recording", "path", destPath, "size", tempInfo.Size())
	} else {
		_ = os.Remove(tempPath)
		r.logger.Debug("discarded shorter recording", "path", destPath, "temp_size", tempInfo.Size(), "existing_size", destInfo.Size())
	}
}
