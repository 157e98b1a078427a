package icy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// streamUserAgent mimics a desktop player. Some directory servers return
// error pages to clients they do not recognize.
const streamUserAgent = "iTunes/12.9.2 (Macintosh; OS X 10.14.3) AppleWebKit/606.4.5"

// maxPlaylistDepth caps playlist-to-playlist indirection when resolving a
// stream URL.
const maxPlaylistDepth = 3

// MetadataCallbackFunc is the type of the function called when the stream
// metadata changes.
type MetadataCallbackFunc func(m *Metadata)

// Stream is an open icy stream: audio bytes via Read, the server's stream
// properties via Headers, and change-deduplicated metadata via OnChange.
// Like the Reader it wraps, a Stream is a single cursor and is not safe for
// concurrent use.
type Stream struct {
	// Headers holds the properties the server reported when the stream was
	// opened.
	Headers *Headers

	// OnChange, when set, is called whenever a decoded record differs from
	// the previous one. Set it before the first Read.
	OnChange MetadataCallbackFunc

	// OnFrame, when set, observes every metadata frame before change
	// deduplication, decode failures included. Set it before the first
	// Read.
	OnFrame MetadataFunc

	reader *Reader
	body   io.ReadCloser
	url    string

	last     *Metadata
	failures int
}

// Open connects to an icy stream URL, requesting in-stream metadata and
// resolving playlist indirections (.pls, .m3u) to the stream they point at.
// ctx bounds connection establishment and stays attached to the body, so
// canceling it also ends a stream mid-read. Reading has no timeout of its
// own; radio streams are read indefinitely.
func Open(ctx context.Context, rawURL string) (*Stream, error) {
	slog.Debug("opening stream", "url", rawURL)

	// Timeouts cover establishing the connection only.
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	client := &http.Client{Transport: &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
	}}

	resp, err := openStream(ctx, client, rawURL)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		Headers: ParseHeaders(resp.Header),
		body:    resp.Body,
		url:     rawURL,
	}
	s.reader = NewReader(resp.Body, s.Headers.MetadataInterval, s.observe)
	return s, nil
}

// openStream issues the request, following playlist responses to the
// stream they name.
func openStream(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	for depth := 0; depth < maxPlaylistDepth; depth++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "*/*")
		req.Header.Set("User-Agent", streamUserAgent)
		RequestMetadata(req.Header)

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}

		next, isStream, err := resolvePlaylist(resp, rawURL)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if isStream {
			return resp, nil
		}
		resp.Body.Close()
		slog.Debug("resolved playlist", "playlist", rawURL, "stream", next)
		rawURL = next
	}
	return nil, fmt.Errorf("too many playlist redirections")
}

// observe is the per-frame callback; it folds the frame feed down to
// change events for OnChange.
func (s *Stream) observe(m *Metadata, err error) {
	if s.OnFrame != nil {
		s.OnFrame(m, err)
	}
	if err != nil {
		s.failures++
		slog.Debug("metadata decode failed", "url", s.url, "err", err)
		return
	}
	if m.Equal(s.last) {
		return
	}
	s.last = m
	if s.OnChange != nil {
		s.OnChange(m)
	}
}

// Read implements io.Reader, returning audio bytes only.
func (s *Stream) Read(p []byte) (int, error) { return s.reader.Read(p) }

// Metadata returns the most recently decoded record, nil before the first.
func (s *Stream) Metadata() *Metadata { return s.last }

// DecodeFailures counts frames that failed to decode since the stream was
// opened.
func (s *Stream) DecodeFailures() int { return s.failures }

// Close closes the underlying connection.
func (s *Stream) Close() error {
	slog.Debug("closing stream", "url", s.url)
	return s.body.Close()
}
