package player

import "lottied/internal/renderer"

// RepeatInfinite repeats forever.
const RepeatInfinite = -1

// RepeatMode selects what happens at the end of the window.
type RepeatMode int

const (
	// Restart wraps back to the start of the window.
	Restart RepeatMode = iota
	// Reverse bounces between the window bounds.
	Reverse
)

func (m RepeatMode) String() string {
	if m == Reverse {
		return "reverse"
	}
	return "restart"
}

// Bound tells which window edge produced a repeat.
type Bound int

const (
	BoundNone Bound = iota
	BoundStart
	BoundEnd
)

// RepeatEvent is reported each time playback wraps or bounces.
type RepeatEvent struct {
	PlayCount int
	Infinite  bool
	Bound     Bound
}

// sequencer owns the repeat and segment state and computes which frame to
// decode after the one just decoded.
type sequencer struct {
	total int

	marker      *renderer.Marker
	customStart int
	customEnd   int
	playToward  bool
	limitFps    bool

	repeatCount int
	mode        RepeatMode
	playCount   int
	reversing   bool
}

// window resolves the effective [start, end] range, always within
// [0, total] with start <= end.
func (s *sequencer) window() (start, end int) {
	switch {
	case s.marker != nil && s.marker.OutFrame > 0:
		end = min(s.marker.OutFrame, s.total)
	case s.customEnd > 0:
		end = s.customEnd
	default:
		end = s.total
	}
	if s.marker != nil && s.marker.InFrame >= 0 {
		start = min(s.marker.InFrame, s.total)
	} else {
		start = clamp(s.customStart, 0, s.total)
	}
	end = clamp(end, 0, s.total)
	if start > end {
		start = end
	}
	return start, end
}

func (s *sequencer) step() int {
	if s.limitFps {
		return 2
	}
	return 1
}

func (s *sequencer) directional() bool {
	return s.playToward && (s.customEnd > 0 || s.marker != nil)
}

// finite reports whether a completed run should block Start until Restart.
func (s *sequencer) finite() bool {
	return s.repeatCount > 1
}

// advance returns the frame to decode after cur. last is set when cur is
// the final frame of the run.
func (s *sequencer) advance(cur int) (next int, last bool, ev *RepeatEvent) {
	start, end := s.window()
	step := s.step()
	next = cur
	switch {
	case s.directional():
		if cur > end {
			if cur-step > end {
				next = cur - step
			} else {
				last = true
			}
		} else {
			if cur+step < end {
				next = cur + step
			} else {
				last = true
			}
		}
		if next < start {
			next = start
		}
	case s.mode == Reverse:
		hi := max(end-1, start)
		if !s.reversing {
			if cur >= hi {
				if last, ev = s.repeated(BoundEnd); !last {
					s.reversing = true
					next = max(cur-step, start)
				}
			} else {
				next = min(cur+step, hi)
			}
		} else {
			if cur <= start {
				if last, ev = s.repeated(BoundStart); !last {
					s.reversing = false
					next = min(cur+step, hi)
				}
			} else {
				next = max(cur-step, start)
			}
		}
	default:
		if cur+step < end {
			next = cur + step
		} else if last, ev = s.repeated(BoundNone); !last {
			next = start
		}
	}
	return clamp(next, start, end), last, ev
}

// repeated counts one pass and reports whether the run is over.
func (s *sequencer) repeated(b Bound) (last bool, ev *RepeatEvent) {
	if s.repeatCount == RepeatInfinite {
		return false, &RepeatEvent{PlayCount: s.playCount, Infinite: true, Bound: b}
	}
	s.playCount++
	if s.playCount >= s.repeatCount {
		return true, nil
	}
	return false, &RepeatEvent{PlayCount: s.playCount, Bound: b}
}

func (s *sequencer) reset() {
	s.playCount = 0
	s.reversing = false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
