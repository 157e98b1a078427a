package icy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Playlist files are tiny; bound the read so a mislabeled live stream
// cannot grow the buffer without limit.
const maxPlaylistBytes = 64 * 1024

// parsePLS returns the first stream URL in a PLS playlist.
func parsePLS(content string) (string, error) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "File") {
			continue
		}
		if _, u, ok := strings.Cut(line, "="); ok {
			if u = strings.TrimSpace(u); u != "" {
				return u, nil
			}
		}
	}
	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// parseM3U returns the first stream URL in an M3U playlist, skipping
// comments and extended-info lines.
func parseM3U(content string) (string, error) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if startsWithURL(line) {
			return line, nil
		}
	}
	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

func startsWithURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolvePlaylist decides whether resp is the stream itself or a playlist
// naming it. When resp is a playlist, its body is read (bounded) and the
// URL it names is returned; a stream body is left untouched for the caller.
func resolvePlaylist(resp *http.Response, rawURL string) (next string, isStream bool, err error) {
	// A server that answers the metadata request with an interval is a
	// stream, whatever the content type claims.
	if resp.Header.Get("icy-metaint") != "" {
		return "", true, nil
	}

	contentType := resp.Header.Get("Content-Type")
	isPLS := strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(rawURL, ".pls")
	isM3U := strings.Contains(contentType, "audio/mpegurl") ||
		strings.Contains(contentType, "application/vnd.apple.mpegurl") ||
		strings.HasSuffix(rawURL, ".m3u") ||
		strings.HasSuffix(rawURL, ".m3u8")

	if !isPLS && !isM3U {
		// A stream that ignored the metadata request. Playlist content
		// types were ruled out above, so trust the audio type.
		if strings.HasPrefix(contentType, "audio/") || strings.HasPrefix(contentType, "application/ogg") {
			return "", true, nil
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return "", false, fmt.Errorf("failed to read response body: %w", err)
	}
	content := string(data)

	if !isPLS && !isM3U {
		isPLS = strings.Contains(content, "[playlist]") || strings.Contains(content, "File1=")
		isM3U = strings.Contains(content, "#EXTM3U") || startsWithURL(content)
	}

	switch {
	case isPLS:
		if next, err = parsePLS(content); err != nil {
			return "", false, fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return next, false, nil
	case isM3U:
		if next, err = parseM3U(content); err != nil {
			return "", false, fmt.Errorf("failed to parse M3U playlist: %w", err)
		}
		return next, false, nil
	default:
		return "", false, fmt.Errorf("URL does not appear to be a stream or playlist (Content-Type: %s)", contentType)
	}
}
