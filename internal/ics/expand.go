package ics

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "sadlamp/internal/log"
)

// maxPerSeries caps expansion of a single recurring event.
const maxPerSeries = 5000

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	FeedID  string
	UID     string
	Summary string
	AllDay  bool
	Start   time.Time
	End     time.Time
}

// Expand returns the occurrences of events that overlap [from, to),
// converted to loc and sorted by start. RRULE, EXDATE and RECURRENCE-ID
// overrides are applied.
func Expand(events []Event, from, to time.Time, loc *time.Location) []Occurrence {
	if loc == nil {
		loc = time.Local
	}
	if !to.After(from) {
		return nil
	}

	overrides := make(map[string][]Event)
	var series []Event
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		series = append(series, ev)
	}

	var out []Occurrence
	for _, ev := range series {
		for _, inst := range instances(ev, from, to) {
			if o, ok := overrideFor(overrides[ev.UID], inst.Start); ok {
				inst = o
			}
			if overlaps(inst.Start, inst.End, from, to) {
				out = append(out, Occurrence{
					FeedID:  inst.FeedID,
					UID:     inst.UID,
					Summary: inst.Summary,
					AllDay:  inst.AllDay,
					Start:   inst.Start.In(loc),
					End:     inst.End.In(loc),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// instances yields the event itself, or one copy per recurrence whose start
// could overlap the window.
func instances(ev Event, from, to time.Time) []Event {
	if ev.RRule == "" {
		return []Event{ev}
	}

	opt, err := rrule.StrToROption(ev.RRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("ics rrule build failed", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	set := rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Start early enough to catch instances already running at from.
	dur := ev.End.Sub(ev.Start)
	starts := set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	if len(starts) > maxPerSeries {
		appLog.Warn("ics series truncated", "uid", ev.UID, "cap", maxPerSeries)
		starts = starts[:maxPerSeries]
	}

	out := make([]Event, 0, len(starts))
	for _, s := range starts {
		inst := ev
		inst.Start = s
		inst.End = s.Add(dur)
		inst.RRule = ""
		out = append(out, inst)
	}
	return out
}

func overrideFor(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

// overlaps treats both ranges as half-open. Zero-length events count when
// they start inside the window.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
