package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"sadlamp/internal/kvstore"
	appLog "sadlamp/internal/log"
)

// Store keeps all schedules in one blob under kvstore.KeySchedules,
// shaped {"2026-01-15": [entry, ...], ...}.
type Store struct {
	kv kvstore.Store
	// mu serializes read-modify-write cycles on the blob.
	mu sync.Mutex
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) load(ctx context.Context) (map[string][]Entry, error) {
	all := make(map[string][]Entry)
	if _, err := kvstore.LoadJSON(ctx, s.kv, kvstore.KeySchedules, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = make(map[string][]Entry)
	}
	return all, nil
}

func (s *Store) All(ctx context.Context) (map[string][]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) ForDate(ctx context.Context, date string) ([]Entry, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	all, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := append([]Entry(nil), all[date]...)

	// Recurring entries anchored on earlier days, in date order.
	anchors := make([]string, 0, len(all))
	for d := range all {
		if d < date {
			anchors = append(anchors, d)
		}
	}
	sort.Strings(anchors)
	for _, d := range anchors {
		anchor, err := ParseDate(d)
		if err != nil {
			continue
		}
		for _, e := range all[d] {
			if occursOn(e, anchor, day) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, date string, e Entry) (Entry, error) {
	if _, err := ParseDate(date); err != nil {
		return Entry{}, err
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	e.ID = uuid.NewString()
	e.Date = date

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load(ctx)
	if err != nil {
		return Entry{}, err
	}
	all[date] = append(all[date], e)
	if err := kvstore.SaveJSON(ctx, s.kv, kvstore.KeySchedules, all); err != nil {
		return Entry{}, err
	}
	appLog.Info("schedule entry saved", "date", date, "id", e.ID, "recurring", e.RRule != "")
	return e, nil
}

func (s *Store) Delete(ctx context.Context, date, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	entries := all[date]
	kept := entries[:0:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, date, id)
	}
	if len(kept) == 0 {
		delete(all, date)
	} else {
		all[date] = kept
	}
	if err := kvstore.SaveJSON(ctx, s.kv, kvstore.KeySchedules, all); err != nil {
		return err
	}
	appLog.Info("schedule entry deleted", "date", date, "id", id)
	return nil
}
