package audio

import "sync"

// TimeRing is a time-indexed bounded queue of AudioChunks. It prunes from
// the front on insert, keeping only chunks within Retention seconds of the
// most recently inserted chunk's timestamp. Used as both the pre-speech
// ring (EventRouter, typical 1.0s) and the pre-draft ring (Rescanner,
// typical 30s) named in spec.md §3.
type TimeRing struct {
	mu        sync.Mutex
	retention float64
	chunks    []AudioChunk
}

// NewTimeRing creates a ring retaining chunks within retentionSeconds of
// the newest chunk's timestamp.
func NewTimeRing(retentionSeconds float64) *TimeRing {
	return &TimeRing{retention: retentionSeconds}
}

// Push appends a chunk (cloning it, since rings outlive the chunk's
// original subscriber scope) and prunes anything older than the retention
// window relative to this chunk's timestamp.
func (r *TimeRing) Push(c AudioChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = append(r.chunks, c.Clone())
	cutoff := c.Timestamp - r.retention
	i := 0
	for i < len(r.chunks) && r.chunks[i].Timestamp < cutoff {
		i++
	}
	if i > 0 {
		r.chunks = append([]AudioChunk{}, r.chunks[i:]...)
	}
}

// GetFrom returns a copy of every retained chunk with Timestamp >= t.
func (r *TimeRing) GetFrom(t float64) []AudioChunk {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AudioChunk
	for _, c := range r.chunks {
		if c.Timestamp >= t {
			out = append(out, c)
		}
	}
	return out
}

// GetRange returns a copy of every retained chunk with from <= Timestamp <= to.
func (r *TimeRing) GetRange(from, to float64) []AudioChunk {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AudioChunk
	for _, c := range r.chunks {
		if c.Timestamp >= from && c.Timestamp <= to {
			out = append(out, c)
		}
	}
	return out
}

// HasData reports whether the ring currently retains any chunks.
func (r *TimeRing) HasData() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks) > 0
}

// GetAll returns every retained chunk, optionally clearing the ring.
func (r *TimeRing) GetAll(clear bool) []AudioChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]AudioChunk{}, r.chunks...)
	if clear {
		r.chunks = nil
	}
	return out
}

// Clear empties the ring.
func (r *TimeRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = nil
}
