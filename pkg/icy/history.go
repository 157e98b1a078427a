package icy

// frameHistory is a bounded record of past frame payload sizes. Pushing at
// capacity evicts the oldest entry; backward seeks pop the newest. The
// backing array never reallocates after construction.
type frameHistory struct {
	sizes []int
	head  int // index of the oldest entry
	n     int // live entries, 0 <= n <= cap
}

func newFrameHistory(capacity int) *frameHistory {
	return &frameHistory{sizes: make([]int, capacity)}
}

// push records the most recent frame size, evicting the oldest entry when
// the ring is full.
func (h *frameHistory) push(size int) {
	if len(h.sizes) == 0 {
		return
	}
	h.sizes[(h.head+h.n)%len(h.sizes)] = size
	if h.n == len(h.sizes) {
		h.head = (h.head + 1) % len(h.sizes)
	} else {
		h.n++
	}
}

// pop removes and returns the most recently pushed size.
func (h *frameHistory) pop() (int, bool) {
	if h.n == 0 {
		return 0, false
	}
	h.n--
	return h.sizes[(h.head+h.n)%len(h.sizes)], true
}

func (h *frameHistory) len() int { return h.n }
