package icy

import "strings"

// parseResult is the outcome of splitting a delimited metadata string.
// Keys keep their original spelling; consumers match them case-insensitively.
type parseResult struct {
	fields        map[string]string
	malformed     bool // some segment had no '='
	missingQuotes bool // some value lacked both surrounding quotes
}

// parseDelimited splits a Key='Value';Key2='Value2'; string into fields.
// Later duplicates of a key overwrite earlier ones. A segment without an
// equals sign contributes nothing and sets the malformed flag.
func parseDelimited(s string) parseResult {
	res := parseResult{fields: make(map[string]string)}
	for _, seg := range strings.Split(strings.TrimSpace(s), ";") {
		key, value, missing, ok := parseKeyValue(seg)
		if !ok {
			res.malformed = true
			continue
		}
		res.fields[key] = value
		if missing {
			res.missingQuotes = true
		}
	}
	return res
}

// parseKeyValue splits one segment on the first '=' and strips matching
// single quotes from the value. A value without both quotes is accepted
// as-is with missing set.
func parseKeyValue(seg string) (key, value string, missing, ok bool) {
	key, value, ok = strings.Cut(seg, "=")
	if !ok {
		return "", "", false, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if len(value) > 1 && strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") {
		value = value[1 : len(value)-1]
	} else {
		missing = true
	}
	return key, value, missing, true
}

// reparseValue extracts the value from a raw key='value' segment recovered
// by scanning for a reserved key. Trailing semicolons outside the quotes
// are dropped first. ok is false when the segment has no '='.
func reparseValue(seg string) (value string, ok bool) {
	seg = strings.TrimRight(seg, ";")
	_, value, _, ok = parseKeyValue(seg)
	return value, ok
}

// lowerASCII folds only ASCII letters, so byte offsets into the result are
// valid offsets into the input. strings.ToLower can change byte lengths on
// some Unicode code points, which would break index-based recovery.
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
