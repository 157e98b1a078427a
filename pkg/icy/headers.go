package icy

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// MetadataRequestHeader asks a server to interleave metadata frames into
// the stream it serves.
const MetadataRequestHeader = "Icy-MetaData"

// RequestMetadata adds the Icy-MetaData header to h. Servers only emit the
// icy-metaint response header, and the frames themselves, when asked.
func RequestMetadata(h http.Header) {
	h.Set(MetadataRequestHeader, "1")
}

// Headers holds the stream properties a server reports in its response
// headers. Fields left at their zero value were not present. The header
// name aliases (ice-*, icy-*, x-audiocast-*) are collapsed per field;
// most names follow what Icecast and Shoutcast deployments actually send
// rather than any written standard.
type Headers struct {
	// Name is the station name.
	Name string

	// Description is the station description.
	Description string

	// Genre lists the station genres, comma-split.
	Genre []string

	// StationURL is the station homepage.
	StationURL string

	// Bitrate is the stream bitrate in kbit/s. Falls back to the
	// audio-info header when no dedicated bitrate header is present.
	Bitrate int

	// SampleRate is the sample rate in Hz, with the same audio-info
	// fallback as Bitrate.
	SampleRate int

	// Channels is the channel count, only ever found in audio-info.
	Channels int

	// Quality is the encoder quality setting, only ever found in
	// audio-info.
	Quality string

	// Public reports whether the station wants to be listed in stream
	// directories.
	Public bool

	// Notice1 and Notice2 are free-form server notices, often just the
	// server software advertising itself.
	Notice1 string
	Notice2 string

	// Loudness is the loudness normalization value in dB.
	Loudness float64

	LogoURL       string
	MainStreamURL string

	// Version is the icy-version value; version 2 servers add the index
	// properties below.
	Version int

	// IndexMetadata marks the metadata as deliberately set rather than
	// server defaults.
	IndexMetadata bool

	// CountryCode is an ISO 3166-1 code, CountrySubdivisionCode an ISO
	// 3166-2 code.
	CountryCode            string
	CountrySubdivisionCode string

	// LanguageCodes holds ISO 639 codes, comma-split.
	LanguageCodes []string

	// GeoLatLong is the station's latitude and longitude, nil when absent.
	GeoLatLong []float64

	// DoNotIndex is set by operators who want the stream kept out of
	// directories.
	DoNotIndex bool

	// MetadataInterval is the icy-metaint value: the number of audio bytes
	// between metadata frames. Zero means the stream carries none. Pass it
	// to NewReader either way.
	MetadataInterval int

	// AudioInfo is the parsed ice-audio-info header, nil when absent.
	AudioInfo *AudioInfo
}

// AudioInfo is the parsed ice-audio-info header: a key=value;... list
// describing the encoding. Keys and values are percent-decoded.
type AudioInfo struct {
	SampleRate int
	Bitrate    int
	Channels   int
	Quality    string

	// Custom holds any keys beyond the four known ones.
	Custom map[string]string
}

// ParseHeaders extracts every known icy property from h.
func ParseHeaders(h http.Header) *Headers {
	out := &Headers{
		Name:                   findHeader(h, "ice-name", "icy-name", "x-audiocast-name"),
		Description:            findHeader(h, "ice-description", "icy-description", "x-audiocast-description"),
		StationURL:             findHeader(h, "ice-url", "icy-url", "x-audiocast-url"),
		Notice1:                findHeader(h, "ice-notice1", "icy-notice1", "x-audiocast-notice1"),
		Notice2:                findHeader(h, "ice-notice2", "icy-notice2", "x-audiocast-notice2"),
		LogoURL:                findHeader(h, "icy-logo"),
		MainStreamURL:          findHeader(h, "icy-main-stream-url"),
		CountryCode:            findHeader(h, "icy-country-code"),
		CountrySubdivisionCode: findHeader(h, "icy-country-subdivision-code"),
		Public:                 headerBool(findHeader(h, "ice-public", "icy-pub", "icy-public", "x-audiocast-public")),
		IndexMetadata:          headerBool(findHeader(h, "icy-index-metadata")),
		DoNotIndex:             headerBool(findHeader(h, "icy-do-not-index")),
	}

	if v := findHeader(h, "ice-genre", "icy-genre", "x-audiocast-genre"); v != "" {
		out.Genre = commaSeparated(v)
	}
	if v := findHeader(h, "icy-language-codes", "icy-language-code"); v != "" {
		out.LanguageCodes = commaSeparated(v)
	}
	if v := findHeader(h, "ice-bitrate", "icy-br", "x-audiocast-bitrate"); v != "" {
		// Some servers send several comma-separated values; take the first.
		if n, err := strconv.Atoi(commaSeparated(v)[0]); err == nil {
			out.Bitrate = n
		}
	}
	if v := findHeader(h, "ice-samplerate", "icy-sr", "x-audiocast-samplerate"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.SampleRate = n
		}
	}
	if v := findHeader(h, "icy-version"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.Version = n
		}
	}
	if v := findHeader(h, "X-Loudness"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out.Loudness = f
		}
	}
	if v := findHeader(h, "icy-geo-lat-long"); v != "" {
		if parts := commaSeparated(v); len(parts) == 2 {
			lat, latErr := strconv.ParseFloat(parts[0], 64)
			long, longErr := strconv.ParseFloat(parts[1], 64)
			if latErr == nil && longErr == nil {
				out.GeoLatLong = []float64{lat, long}
			}
		}
	}
	if v := findHeader(h, "icy-metaint"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.MetadataInterval = n
		}
	}
	if v := findHeader(h, "ice-audio-info", "icy-audio-info"); v != "" {
		out.AudioInfo = parseAudioInfo(v)
	}

	if out.AudioInfo != nil {
		if out.Bitrate == 0 {
			out.Bitrate = out.AudioInfo.Bitrate
		}
		if out.SampleRate == 0 {
			out.SampleRate = out.AudioInfo.SampleRate
		}
		out.Channels = out.AudioInfo.Channels
		out.Quality = out.AudioInfo.Quality
	}

	return out
}

// findHeader returns the first present header among names, trimmed.
func findHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// headerBool parses the loose boolean convention used in icy headers. 1 and
// 0 are the typical values but a few servers send words.
func headerBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func commaSeparated(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseAudioInfo decodes an ice-audio-info value such as
//
//	ice-samplerate=44100;ice-bitrate=128;ice-channels=2
//
// reusing the delimited-record parser. Entries whose key or value fail
// percent-decoding are dropped. Note url.PathUnescape rather than
// QueryUnescape: '+' in these values is a literal plus.
func parseAudioInfo(v string) *AudioInfo {
	info := &AudioInfo{Custom: make(map[string]string)}
	res := parseDelimited(v)
	for key, value := range res.fields {
		key, keyErr := url.PathUnescape(key)
		value, valueErr := url.PathUnescape(value)
		if keyErr != nil || valueErr != nil {
			continue
		}
		switch strings.ToLower(key) {
		case "icy-samplerate", "ice-samplerate", "samplerate":
			if n, err := strconv.Atoi(value); err == nil {
				info.SampleRate = n
			}
		case "icy-bitrate", "ice-bitrate", "bitrate":
			if n, err := strconv.Atoi(value); err == nil {
				info.Bitrate = n
			}
		case "icy-channels", "ice-channels", "channels":
			if n, err := strconv.Atoi(value); err == nil {
				info.Channels = n
			}
		case "icy-quality", "ice-quality", "quality":
			info.Quality = value
		default:
			info.Custom[key] = value
		}
	}
	return info
}
