package icy

import (
	"errors"
	"fmt"
	"io"
)

// The length byte of a frame counts 16-byte blocks, and the prefix itself
// is always a single byte. Both are fixed by the wire format.
const metaMultiplier = 16

// defaultHistoryDepth bounds how many frame sizes a Reader retains for
// backward seeks. At a typical icy-metaint of 16000 this covers roughly
// 512KiB of rewind, matching the buffer sizes players tend to keep.
const defaultHistoryDepth = 32

// MetadataFunc receives each in-stream metadata record in stream order:
// either the decoded record, or the typed failure (*InvalidEncodingError or
// *EmptyMetadataError) that kept it from decoding. Exactly one of md and
// err is set. The function runs synchronously inside Read or Seek and must
// not call back into the Reader.
type MetadataFunc func(md *Metadata, err error)

// Reader demultiplexes an ICY stream: Read returns only audio bytes while
// the interleaved metadata frames are consumed, decoded and delivered to
// the callback. Seek operates on logical (audio-only) offsets and
// translates them to physical source offsets on the far side of any frames
// in between.
//
// A Reader is a single cursor over a single source and is not safe for
// concurrent use.
type Reader struct {
	src      io.Reader
	interval int
	next     int   // audio bytes until the next frame boundary
	pos      int64 // logical position: audio bytes delivered so far

	history    *frameHistory
	onMetadata MetadataFunc
	notifySeek bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithHistoryDepth sets how many frame sizes are retained for backward
// seeks; each retained frame extends the rewind range by one interval.
// The default is 32. A depth of zero disables rewinding across frames.
func WithHistoryDepth(n int) ReaderOption {
	return func(r *Reader) {
		if n >= 0 {
			r.history = newFrameHistory(n)
		}
	}
}

// WithSeekNotifications controls whether frames consumed by a forward seek
// invoke the metadata callback. Off by default, so seeking does not fire
// metadata events for frames the caller never read past.
func WithSeekNotifications(enabled bool) ReaderOption {
	return func(r *Reader) { r.notifySeek = enabled }
}

// NewReader wraps src. interval is the icy-metaint value from the response
// headers: the number of audio bytes between consecutive metadata frames.
// An interval of zero (or less) means the stream carries no metadata and
// the Reader passes reads and seeks through untouched.
//
// onMetadata may be nil, in which case frames are stripped and recorded for
// seeking but never decoded. Seek additionally requires src to implement
// io.Seeker.
func NewReader(src io.Reader, interval int, onMetadata MetadataFunc, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:        src,
		interval:   interval,
		onMetadata: onMetadata,
	}
	if interval > 0 {
		r.next = interval
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.history == nil {
		r.history = newFrameHistory(defaultHistoryDepth)
	}
	return r
}

// Read fills p with audio bytes, consuming any metadata frames that fall
// inside the requested range. Every frame crossed fires the callback, in
// stream order, before Read returns. A frame is consumed only once the
// stream position truly reaches its boundary, so short reads never shift
// the framing.
func (r *Reader) Read(p []byte) (int, error) {
	if r.interval <= 0 {
		return r.src.Read(p)
	}

	total := 0
	for total < len(p) {
		if r.next == 0 {
			if err := r.consumeFrame(r.onMetadata); err != nil {
				return r.readErr(total, err)
			}
			r.next = r.interval
			continue
		}

		want := r.next
		if rem := len(p) - total; want > rem {
			want = rem
		}
		n, err := r.src.Read(p[total : total+want])
		total += n
		r.next -= n
		r.pos += int64(n)
		if err != nil {
			return r.readErr(total, err)
		}
		if n < want {
			// Short read: hand back what we have rather than blocking for
			// more.
			return total, nil
		}
	}
	return total, nil
}

// readErr folds an underlying error into the byte count delivered so far.
// End of stream with data in hand is reported as a plain short read; the
// next call returns io.EOF.
func (r *Reader) readErr(total int, err error) (int, error) {
	if err == io.EOF && total > 0 {
		return total, nil
	}
	return total, err
}

// consumeFrame reads one length-prefixed metadata frame at the current
// source position and pushes its payload size onto the seek history.
// io.EOF from the length byte means the stream ended cleanly at the
// boundary; a truncated payload is io.ErrUnexpectedEOF.
func (r *Reader) consumeFrame(fn MetadataFunc) error {
	var prefix [1]byte
	if _, err := io.ReadFull(r.src, prefix[:]); err != nil {
		return err
	}
	size := int(prefix[0]) * metaMultiplier
	r.history.push(size)
	if size == 0 {
		return nil
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if fn != nil {
		fn(DecodeMetadata(payload))
	}
	return nil
}

// Seek repositions the stream to a logical (audio-only) offset. Forward
// seeks consume every frame whose boundary they cross; backward seeks undo
// frame skips using the size history and fail with ErrSeekHistory, leaving
// the Reader untouched, when the history does not reach back far enough.
// io.SeekEnd is not supported. The returned offset is logical.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	sk, ok := r.src.(io.Seeker)
	if !ok {
		return 0, ErrNotSeekable
	}
	if r.interval <= 0 {
		return sk.Seek(offset, whence)
	}

	var change, target int64
	switch whence {
	case io.SeekStart:
		change, target = offset-r.pos, offset
	case io.SeekCurrent:
		change, target = offset, r.pos+offset
	case io.SeekEnd:
		return 0, ErrSeekFromEnd
	default:
		return 0, fmt.Errorf("icy: invalid seek whence %d", whence)
	}
	if target < 0 {
		return 0, errors.New("icy: negative seek position")
	}

	if change < 0 {
		if err := r.rewind(sk, target); err != nil {
			return 0, err
		}
	} else if err := r.forward(sk, change); err != nil {
		return 0, err
	}

	r.next = r.interval - int(target%int64(r.interval))
	r.pos = target
	return target, nil
}

// forward moves the source ahead by change audio bytes, consuming every
// frame boundary the move crosses.
func (r *Reader) forward(sk io.Seeker, change int64) error {
	fn := r.onMetadata
	if !r.notifySeek {
		fn = nil
	}

	var progress int64
	for change-progress >= int64(r.next) {
		if _, err := sk.Seek(int64(r.next), io.SeekCurrent); err != nil {
			return err
		}
		progress += int64(r.next)
		if err := r.consumeFrame(fn); err != nil {
			return err
		}
		r.next = r.interval
	}
	_, err := sk.Seek(change-progress, io.SeekCurrent)
	return err
}

// rewind moves the source back to the logical offset target, popping one
// history entry per frame region crossed and stepping the source over each
// in turn. The history check happens before anything moves, so a rewind
// that fails with ErrSeekHistory leaves position, counter and history
// intact.
func (r *Reader) rewind(sk io.Seeker, target int64) error {
	interval := int64(r.interval)
	delivered := interval - int64(r.next) // audio delivered since the last frame was consumed
	segStart := r.pos - delivered

	var frames int
	if target < segStart {
		frames = 1 + int((segStart-1-target)/interval)
	}
	if frames > r.history.len() {
		return ErrSeekHistory
	}

	logical := r.pos
	if frames > 0 {
		phys, err := sk.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		regionEnd := phys - delivered
		for i := 0; i < frames; i++ {
			size, _ := r.history.pop()
			regionStart := regionEnd - int64(1+size)
			if _, err := sk.Seek(regionStart, io.SeekStart); err != nil {
				return err
			}
			regionEnd = regionStart - interval
		}
		logical = segStart - int64(frames-1)*interval
	}
	_, err := sk.Seek(target-logical, io.SeekCurrent)
	return err
}
