package icy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
)

const (
	seekInterval = 10
	seekTrailing = 5
)

// Three records with distinct frame sizes, so rewinding has to account for
// each frame region individually.
var seekRecords = []string{
	"StreamUrl='stream-url0';",
	"StreamUrl='stream-urlabc1235678';",
	"StreamUrl='stream-url123';",
}

var seekURLs = []string{"stream-url0", "stream-urlabc1235678", "stream-url123"}

func seekFixture() ([]byte, int) {
	return buildStream(seekInterval, seekRecords, seekTrailing),
		len(seekRecords)*seekInterval + seekTrailing
}

func wantURLs(t *testing.T, results []frameResult, want []string) {
	t.Helper()
	got := streamURLs(t, results)
	if len(got) != len(want) {
		t.Fatalf("callbacks = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("callbacks = %v, want %v", got, want)
		}
	}
}

func TestSeekBackward(t *testing.T) {
	cases := []struct {
		pos  int64
		want []string
	}{
		{pos: 0, want: seekURLs},
		{pos: 5, want: seekURLs},
		{pos: 10, want: seekURLs[1:]},
		{pos: 15, want: seekURLs[1:]},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("pos=%d", tc.pos), func(t *testing.T) {
			data, logical := seekFixture()
			var results []frameResult
			r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results))

			buf := make([]byte, logical)
			if _, err := io.ReadFull(r, buf); err != nil {
				t.Fatalf("initial read: %v", err)
			}
			wantAudio(t, buf, logical)
			wantURLs(t, results, seekURLs)

			n, err := r.Seek(tc.pos, io.SeekStart)
			if err != nil {
				t.Fatalf("seek: %v", err)
			}
			if n != tc.pos {
				t.Fatalf("seek returned %d, want %d", n, tc.pos)
			}

			results = results[:0]
			rest := make([]byte, logical-int(tc.pos))
			if _, err := io.ReadFull(r, rest); err != nil {
				t.Fatalf("re-read: %v", err)
			}
			wantAudio(t, rest, len(rest))
			wantURLs(t, results, tc.want)

			if n, err := r.Read(make([]byte, 1)); n != 0 || err != io.EOF {
				t.Errorf("read past end = (%d, %v), want (0, EOF)", n, err)
			}
		})
	}
}

func TestSeekForward(t *testing.T) {
	// Without seek notifications the callback only sees frames crossed by
	// reads, never frames skipped over.
	cases := []struct {
		pos  int64
		want []string
	}{
		{pos: 5, want: seekURLs},
		{pos: 10, want: seekURLs[1:]},
		{pos: 15, want: seekURLs[1:]},
		{pos: 20, want: seekURLs[2:]},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("pos=%d", tc.pos), func(t *testing.T) {
			data, logical := seekFixture()
			var results []frameResult
			r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results))

			if _, err := r.Seek(tc.pos, io.SeekStart); err != nil {
				t.Fatalf("seek: %v", err)
			}
			rest, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			wantAudio(t, rest, logical-int(tc.pos))
			wantURLs(t, results, tc.want)
		})
	}
}

func TestSeekForwardNotifications(t *testing.T) {
	// With notifications on, every frame is delivered exactly once whether
	// a seek or a read crossed it.
	for _, pos := range []int64{5, 10, 15, 20} {
		t.Run(fmt.Sprintf("pos=%d", pos), func(t *testing.T) {
			data, logical := seekFixture()
			var results []frameResult
			r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results),
				WithSeekNotifications(true))

			if _, err := r.Seek(pos, io.SeekStart); err != nil {
				t.Fatalf("seek: %v", err)
			}
			rest, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			wantAudio(t, rest, logical-int(pos))
			wantURLs(t, results, seekURLs)
		})
	}
}

func TestSeekRoundTrip(t *testing.T) {
	data, logical := seekFixture()
	var results []frameResult
	r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results))

	first, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	wantAudio(t, first, logical)

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	second, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("audio differs between passes")
	}
	wantURLs(t, results, append(append([]string{}, seekURLs...), seekURLs...))
}

func TestSeekCurrent(t *testing.T) {
	data, _ := seekFixture()
	var results []frameResult
	r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results))

	head := make([]byte, 12)
	if _, err := io.ReadFull(r, head); err != nil {
		t.Fatalf("read: %v", err)
	}
	wantAudio(t, head, 12)
	wantURLs(t, results, seekURLs[:1])

	n, err := r.Seek(8, io.SeekCurrent)
	if err != nil {
		t.Fatalf("seek forward: %v", err)
	}
	if n != 20 {
		t.Fatalf("seek returned %d, want 20", n)
	}

	results = results[:0]
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wantAudio(t, rest, 15)
	wantURLs(t, results, seekURLs[2:])

	n, err = r.Seek(-30, io.SeekCurrent)
	if err != nil {
		t.Fatalf("seek backward: %v", err)
	}
	if n != 5 {
		t.Fatalf("seek returned %d, want 5", n)
	}

	results = results[:0]
	rest, err = io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wantAudio(t, rest, 30)
	wantURLs(t, results, seekURLs)
}

func TestSeekHistoryExhausted(t *testing.T) {
	data, _ := seekFixture()
	var results []frameResult
	r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results),
		WithHistoryDepth(1))

	head := make([]byte, 25)
	if _, err := io.ReadFull(r, head); err != nil {
		t.Fatalf("read: %v", err)
	}
	wantURLs(t, results, seekURLs[:2])

	// Two frames back but only one remembered.
	if _, err := r.Seek(2, io.SeekStart); !errors.Is(err, ErrSeekHistory) {
		t.Fatalf("seek err = %v, want ErrSeekHistory", err)
	}

	// The failed seek must not have disturbed the stream.
	results = results[:0]
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read after failed seek: %v", err)
	}
	wantAudio(t, rest, 10)
	wantURLs(t, results, seekURLs[2:])

	// One frame back is still within reach.
	if _, err := r.Seek(25, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	results = results[:0]
	rest, err = io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wantAudio(t, rest, 10)
	wantURLs(t, results, seekURLs[2:])
}

func TestSeekPendingFrameAtBoundary(t *testing.T) {
	// Reading exactly up to a boundary leaves the frame pending; a
	// zero-length seek settles it.
	data, _ := seekFixture()
	var results []frameResult
	r := NewReader(bytes.NewReader(data), seekInterval, recordFrames(&results),
		WithSeekNotifications(true))

	head := make([]byte, seekInterval)
	if _, err := io.ReadFull(r, head); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("callback fired before the boundary was crossed")
	}

	n, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}
	if n != seekInterval {
		t.Fatalf("seek returned %d, want %d", n, seekInterval)
	}
	wantURLs(t, results, seekURLs[:1])

	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wantAudio(t, rest, 25)
	wantURLs(t, results, seekURLs)
}

func TestSeekZeroLengthFrames(t *testing.T) {
	// Zero-length frames occupy a single length byte; rewinding has to step
	// back over them like any other frame.
	const interval = 5
	var data []byte
	data = append(data, bytes.Repeat([]byte{1}, interval)...)
	data = append(data, 0)
	data = append(data, bytes.Repeat([]byte{1}, interval)...)
	data = append(data, 0)
	data = append(data, bytes.Repeat([]byte{1}, 3)...)

	r := NewReader(bytes.NewReader(data), interval, nil)
	first, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wantAudio(t, first, 2*interval+3)

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	second, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("audio differs between passes")
	}
}

func TestSeekFromEnd(t *testing.T) {
	data, _ := seekFixture()
	r := NewReader(bytes.NewReader(data), seekInterval, nil)
	if _, err := r.Seek(0, io.SeekEnd); !errors.Is(err, ErrSeekFromEnd) {
		t.Fatalf("err = %v, want ErrSeekFromEnd", err)
	}
}

func TestSeekNegative(t *testing.T) {
	data, _ := seekFixture()
	r := NewReader(bytes.NewReader(data), seekInterval, nil)
	if _, err := r.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative start offset did not fail")
	}
	if _, err := r.Seek(-1, io.SeekCurrent); err == nil {
		t.Error("seek before position zero did not fail")
	}
}

func TestSeekInvalidWhence(t *testing.T) {
	data, _ := seekFixture()
	r := NewReader(bytes.NewReader(data), seekInterval, nil)
	if _, err := r.Seek(0, 7); err == nil {
		t.Error("invalid whence did not fail")
	}
}

type readerOnly struct{ io.Reader }

func TestSeekNotSeekable(t *testing.T) {
	data, _ := seekFixture()
	r := NewReader(readerOnly{bytes.NewReader(data)}, seekInterval, nil)
	if _, err := r.Seek(0, io.SeekStart); !errors.Is(err, ErrNotSeekable) {
		t.Fatalf("err = %v, want ErrNotSeekable", err)
	}
}

func TestSeekPassThrough(t *testing.T) {
	data := []byte("0123456789")
	r := NewReader(bytes.NewReader(data), 0, nil)

	n, err := r.Seek(4, io.SeekStart)
	if err != nil || n != 4 {
		t.Fatalf("seek = (%d, %v), want (4, nil)", n, err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "456789" {
		t.Errorf("read %q, want %q", got, "456789")
	}

	// SeekEnd is only rejected when frames are being tracked.
	n, err = r.Seek(-2, io.SeekEnd)
	if err != nil || n != 8 {
		t.Fatalf("seek = (%d, %v), want (8, nil)", n, err)
	}
	got, err = io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "89" {
		t.Errorf("read %q, want %q", got, "89")
	}
}
