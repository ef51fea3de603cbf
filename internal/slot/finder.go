package slot

import (
	"sort"
	"time"
)

// MinSlotDuration is the shortest gap that counts as a usable lamp session.
const MinSlotDuration = 30 * time.Minute

// BusyInterval is one scheduled commitment within a day.
// Start <= End is expected but not enforced.
type BusyInterval struct {
	Start TimeOfDay
	End   TimeOfDay
	Label string
}

// DaylightWindow bounds the search for a free slot.
type DaylightWindow struct {
	Sunrise TimeOfDay
	Sunset  TimeOfDay
}

// Degenerate reports whether the window is empty (sunrise at or after sunset).
func (w DaylightWindow) Degenerate() bool {
	return w.Sunrise >= w.Sunset
}

// FindFreeSlot returns the start of the first gap of at least minDuration
// inside window, sweeping busy intervals in start order (greedy earliest-fit).
//
// The returned start s always satisfies sunrise <= s and s+minDuration <= sunset.
// busy is not modified.
func FindFreeSlot(window DaylightWindow, busy []BusyInterval, minDuration time.Duration) (TimeOfDay, bool) {
	if window.Degenerate() {
		return 0, false
	}
	need := TimeOfDay(minDuration / time.Minute)
	if need < 0 {
		need = 0
	}

	sorted := make([]BusyInterval, len(busy))
	copy(sorted, busy)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	cursor := window.Sunrise
	for _, iv := range sorted {
		if cursor >= window.Sunset {
			return 0, false
		}
		gapEnd := iv.Start
		if gapEnd > window.Sunset {
			gapEnd = window.Sunset
		}
		if gapEnd-cursor >= need {
			return cursor, true
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}

	if cursor < window.Sunset && window.Sunset-cursor >= need {
		return cursor, true
	}
	return 0, false
}
