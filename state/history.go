package state

// History is a fixed capacity ring buffer of health checks. Appending to a
// full buffer evicts the oldest entry.
type History struct {
	buf   []HealthCheck
	start int
	size  int
}

// NewHistory returns an empty history holding at most capacity checks.
// A capacity below one is raised to one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		buf: make([]HealthCheck, capacity),
	}
}

// Append records a check, evicting the oldest one when the buffer is full.
func (h *History) Append(c HealthCheck) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = c
		h.size++
		return
	}

	h.buf[h.start] = c
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of checks held.
func (h *History) Len() int {
	return h.size
}

// Cap returns the maximum number of checks held.
func (h *History) Cap() int {
	return len(h.buf)
}

// Items returns the held checks, oldest first.
func (h *History) Items() []HealthCheck {
	out := make([]HealthCheck, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Last returns the most recent check.
func (h *History) Last() (HealthCheck, bool) {
	if h.size == 0 {
		return HealthCheck{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// Clone returns an independent copy of the history.
func (h *History) Clone() *History {
	c := &History{
		buf:   make([]HealthCheck, len(h.buf)),
		start: h.start,
		size:  h.size,
	}
	copy(c.buf, h.buf)
	return c
}
