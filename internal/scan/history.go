package scan

import "time"

const (
	defaultMaxFrames = 3
	minMaxFrames     = 3
	maxMaxFrames     = 5

	// Frames older than this never participate in consensus and are
	// evicted before any insertion.
	frameMaxAge = 20 * time.Second
)

// History is the sliding window of accepted per-frame results for one
// scanner. It is single-writer: the owning engine serializes all mutation.
type History struct {
	frames      []Frame
	maxFrames   int
	totalFrames int
	lastUpdated time.Time
}

func NewHistory(maxFrames int) *History {
	if maxFrames < minMaxFrames {
		maxFrames = defaultMaxFrames
	}
	if maxFrames > maxMaxFrames {
		maxFrames = maxMaxFrames
	}
	return &History{maxFrames: maxFrames}
}

// Add evicts stale frames, then appends. Insertion beyond capacity drops the
// oldest frame first.
func (h *History) Add(f Frame, now time.Time) {
	h.evictBefore(now.Add(-frameMaxAge))
	h.frames = append(h.frames, f)
	if len(h.frames) > h.maxFrames {
		h.frames = h.frames[len(h.frames)-h.maxFrames:]
	}
	h.totalFrames++
	h.lastUpdated = now
}

func (h *History) evictBefore(cutoff time.Time) {
	kept := h.frames[:0]
	for _, f := range h.frames {
		if !f.Timestamp.Before(cutoff) {
			kept = append(kept, f)
		}
	}
	h.frames = kept
}

// Frames returns the window oldest to newest. The slice is a copy.
func (h *History) Frames() []Frame {
	out := make([]Frame, len(h.frames))
	copy(out, h.frames)
	return out
}

func (h *History) Latest() (Frame, bool) {
	if len(h.frames) == 0 {
		return Frame{}, false
	}
	return h.frames[len(h.frames)-1], true
}

func (h *History) Len() int {
	return len(h.frames)
}

// TotalFrames counts every accepted frame over the history's lifetime,
// including evicted ones.
func (h *History) TotalFrames() int {
	return h.totalFrames
}

func (h *History) LastUpdated() time.Time {
	return h.lastUpdated
}

func (h *History) Clear() {
	h.frames = nil
}
