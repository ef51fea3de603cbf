// Package schedule stores the user's per-day commitments and feeds them to
// the slot suggester as busy time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"sadlamp/internal/slot"
)

// DateLayout is the key format for schedule days.
const DateLayout = "2006-01-02"

var (
	ErrInvalidEntry = errors.New("invalid schedule entry")
	ErrNotFound     = errors.New("schedule entry not found")
)

// Entry is one stored commitment. StartTime/EndTime keep the text the user
// entered ("09:00" or "9:00 AM").
type Entry struct {
	ID          string `json:"id"`
	Date        string `json:"date,omitempty"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
	// RRule optionally repeats the entry from Date onward, e.g.
	// "FREQ=WEEKLY;BYDAY=MO,WE".
	RRule string `json:"rrule,omitempty"`
}

// Repository is the storage contract the services depend on.
type Repository interface {
	// ForDate returns entries stored on date plus recurring entries that
	// fall on it, in stored order.
	ForDate(ctx context.Context, date string) ([]Entry, error)
	// Add validates e, assigns an ID and stores it under date.
	Add(ctx context.Context, date string, e Entry) (Entry, error)
	Delete(ctx context.Context, date, id string) error
	// All returns every stored day keyed by date.
	All(ctx context.Context) (map[string][]Entry, error)
}

// ParseDate validates a YYYY-MM-DD key.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: want YYYY-MM-DD", ErrInvalidEntry, date)
	}
	return d, nil
}

// Validate checks that the entry has a description, parseable times and
// start before end.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidEntry)
	}
	start, err := slot.ParseTime(e.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start: %v", ErrInvalidEntry, err)
	}
	end, err := slot.ParseTime(e.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end: %v", ErrInvalidEntry, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidEntry)
	}
	if e.RRule != "" {
		if _, err := parseRule(e.RRule, time.Now()); err != nil {
			return fmt.Errorf("%w: rrule: %v", ErrInvalidEntry, err)
		}
	}
	return nil
}

// ToItems adapts entries to the suggester's input.
func ToItems(entries []Entry) []slot.ScheduleItem {
	items := make([]slot.ScheduleItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, slot.ScheduleItem{
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Description: e.Description,
		})
	}
	return items
}

func parseRule(raw string, anchor time.Time) (*rrule.RRule, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "RRULE:")
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = anchor
	return rrule.NewRRule(*opt)
}

// occursOn reports whether a recurring entry anchored at anchorDate repeats on day.
func occursOn(e Entry, anchorDate, day time.Time) bool {
	if e.RRule == "" || !day.After(anchorDate) {
		return false
	}
	r, err := parseRule(e.RRule, anchorDate)
	if err != nil {
		return false
	}
	return len(r.Between(day, day.Add(24*time.Hour-time.Nanosecond), true)) > 0
}
