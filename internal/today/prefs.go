package today

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sadlamp/internal/kvstore"
	appLog "sadlamp/internal/log"
	"sadlamp/internal/schedule"
)

// Response is the user's answer to the day's suggestion.
type Response string

const (
	ResponseKept     Response = "kept"
	ResponseNotSaved Response = "not saved"
)

var ErrInvalidResponse = errors.New(`response must be "kept" or "not saved"`)

func responseKey(date string) string { return "response-" + date }

// Respond records the answer for date.
func (s *Service) Respond(ctx context.Context, date string, r Response) error {
	if r != ResponseKept && r != ResponseNotSaved {
		return ErrInvalidResponse
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return err
	}
	if err := kvstore.SaveJSON(ctx, s.store, responseKey(date), r); err != nil {
		return err
	}
	appLog.Info("day response saved", "date", date, "response", string(r))
	return nil
}

func (s *Service) response(ctx context.Context, date string) (Response, error) {
	var r Response
	_, err := kvstore.LoadJSON(ctx, s.store, responseKey(date), &r)
	return r, err
}

// Preferences are the user's settings.
type Preferences struct {
	NotificationsEnabled bool `json:"notificationsEnabled"`
}

// PreferencesPatch is a partial update; nil fields are left unchanged.
type PreferencesPatch struct {
	NotificationsEnabled *bool `json:"notificationsEnabled,omitempty"`
}

func defaultPreferences() Preferences {
	return Preferences{NotificationsEnabled: true}
}

// Preferences returns the stored settings, or the defaults.
func (s *Service) Preferences(ctx context.Context) (Preferences, error) {
	data, err := s.store.Get(ctx, kvstore.KeyUserPreferences)
	if errors.Is(err, kvstore.ErrNotFound) {
		return defaultPreferences(), nil
	}
	if err != nil {
		return defaultPreferences(), err
	}
	// Start from defaults so keys missing in the stored blob keep theirs.
	p := defaultPreferences()
	if err := json.Unmarshal(data, &p); err != nil {
		return defaultPreferences(), fmt.Errorf("decode preferences: %w", err)
	}
	return p, nil
}

// SetPreferences merges patch into the stored settings.
func (s *Service) SetPreferences(ctx context.Context, patch PreferencesPatch) (Preferences, error) {
	p, err := s.Preferences(ctx)
	if err != nil {
		appLog.Warn("stored preferences unreadable, starting from defaults", "err", err.Error())
	}
	if patch.NotificationsEnabled != nil {
		p.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if err := kvstore.SaveJSON(ctx, s.store, kvstore.KeyUserPreferences, p); err != nil {
		return p, err
	}
	appLog.Info("preferences saved", "notifications_enabled", p.NotificationsEnabled)
	return p, nil
}

// ClearAll wipes every stored key.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	appLog.Info("all stored data cleared")
	return nil
}
