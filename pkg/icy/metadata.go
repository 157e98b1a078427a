package icy

import (
	"maps"
	"strings"
	"unicode/utf8"
)

// Metadata is one decoded in-stream metadata record. Records are immutable
// once decoded; the zero value is an empty record with no fields set.
type Metadata struct {
	title    string
	url      string
	hasTitle bool
	hasURL   bool
	custom   map[string]string
}

// StreamTitle returns the track title and whether the record carried one.
func (m *Metadata) StreamTitle() (string, bool) { return m.title, m.hasTitle }

// StreamURL returns the stream URL field and whether the record carried one.
func (m *Metadata) StreamURL() (string, bool) { return m.url, m.hasURL }

// Custom returns every field other than StreamTitle and StreamUrl, keyed by
// its original spelling. The map is shared with the record; treat it as
// read-only.
func (m *Metadata) Custom() map[string]string { return m.custom }

// Equal reports whether two records carry the same fields and values.
func (m *Metadata) Equal(o *Metadata) bool {
	if o == nil {
		return false
	}
	return m.title == o.title && m.hasTitle == o.hasTitle &&
		m.url == o.url && m.hasURL == o.hasURL &&
		maps.Equal(m.custom, o.custom)
}

// DecodeMetadata decodes a raw metadata block as read from the wire: UTF-8
// text right-padded with NULs to a multiple of 16 bytes. Invalid UTF-8
// yields an *InvalidEncodingError carrying the raw block.
func DecodeMetadata(raw []byte) (*Metadata, error) {
	if !utf8.Valid(raw) {
		return nil, &InvalidEncodingError{Raw: raw}
	}
	return ParseMetadata(strings.TrimRight(string(raw), "\x00"))
}

// ParseMetadata decodes a metadata record from its text form, for example
//
//	StreamTitle='Artist - Track';StreamUrl='https://example.com';
//
// A record from which no fields can be extracted yields an
// *EmptyMetadataError. The format has no escaping rule for quotes or
// semicolons inside values, so when the naive parse looks ambiguous (stray
// keys, a value missing its quotes, or more semicolons than fields) the two
// reserved keys are re-extracted by locating their markers directly in the
// raw string: whichever marker occurs first has its segment end where the
// other marker begins, and the later one runs to the end of the string.
func ParseMetadata(s string) (*Metadata, error) {
	res := parseDelimited(s)
	if len(res.fields) == 0 {
		return nil, &EmptyMetadataError{Raw: s}
	}

	m := &Metadata{custom: make(map[string]string)}
	stray := false
	for key, value := range res.fields {
		switch strings.ToLower(key) {
		case "streamtitle":
			m.title, m.hasTitle = value, true
		case "streamurl":
			m.url, m.hasURL = value, true
		default:
			m.custom[key] = value
			stray = true
		}
	}

	if res.malformed || stray {
		if strings.Count(s, ";") > len(res.fields) || res.missingQuotes {
			m.recoverReserved(s)
		}
	}

	return m, nil
}

// recoverReserved re-extracts StreamTitle and StreamUrl from records whose
// values contain unescaped delimiters. Only the two reserved fields are
// touched; custom fields keep whatever the naive parse produced.
func (m *Metadata) recoverReserved(s string) {
	lower := lowerASCII(s)
	ti := strings.Index(lower, "streamtitle=")
	ui := strings.Index(lower, "streamurl=")

	var title, url string
	hasTitle, hasURL := ti >= 0, ui >= 0
	switch {
	case hasTitle && hasURL && ti < ui:
		title, url = s[ti:ui], s[ui:]
	case hasTitle && hasURL:
		url, title = s[ui:ti], s[ti:]
	case hasTitle:
		title = s[ti:]
	case hasURL:
		url = s[ui:]
	}

	if hasTitle {
		m.title, m.hasTitle = reparseValue(title)
	}
	if hasURL {
		m.url, m.hasURL = reparseValue(url)
	}
}
