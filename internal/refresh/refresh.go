// Package refresh rebuilds the day report on a cron schedule and sends a
// reminder when the suggested lamp time changes.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sadlamp/internal/kvstore"
	appLog "sadlamp/internal/log"
	"sadlamp/internal/today"
)

// Notifier delivers the day's suggestion to the user.
type Notifier interface {
	Notify(ctx context.Context, rep *today.Report) error
}

// LogNotifier writes the reminder to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, rep *today.Report) error {
	appLog.Info("sad lamp reminder",
		"date", rep.Date,
		"sad_lamp_time", rep.SadLampTime,
		"sunrise", rep.Daylight.Sunrise,
		"sunset", rep.Daylight.Sunset,
	)
	return nil
}

// Reports is the part of today.Service the refresher needs.
type Reports interface {
	Today(ctx context.Context, date string) (*today.Report, error)
	Preferences(ctx context.Context) (today.Preferences, error)
}

// reminder is the last suggestion the user was actually told about.
type reminder struct {
	Date        string    `json:"date"`
	SadLampTime string    `json:"sadLampTime"`
	SentAt      time.Time `json:"sentAt"`
}

type Refresher struct {
	spec     string
	zone     *time.Location
	reports  Reports
	store    kvstore.Store
	notifier Notifier

	// mu keeps overlapping runs from double-notifying.
	mu sync.Mutex
}

// New builds a refresher. The last delivered reminder is kept in kv under
// kvstore.KeyLastReminder.
func New(spec string, zone *time.Location, reports Reports, kv kvstore.Store, n Notifier) *Refresher {
	if n == nil {
		n = LogNotifier{}
	}
	if zone == nil {
		zone = time.Local
	}
	return &Refresher{spec: spec, zone: zone, reports: reports, store: kv, notifier: n}
}

// RunOnce rebuilds today's report and notifies when notifications are on
// and the suggestion differs from the last one delivered. It reports whether
// a notification was sent.
func (r *Refresher) RunOnce(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last reminder
	hadLast, err := kvstore.LoadJSON(ctx, r.store, kvstore.KeyLastReminder, &last)
	if err != nil {
		appLog.Warn("last reminder unreadable", "err", err.Error())
		hadLast = false
	}

	rep, err := r.reports.Today(ctx, "")
	if err != nil {
		return false, fmt.Errorf("build report: %w", err)
	}

	if hadLast && last.Date == rep.Date && last.SadLampTime == rep.SadLampTime {
		appLog.Debug("suggestion unchanged", "date", rep.Date, "sad_lamp_time", rep.SadLampTime)
		return false, nil
	}

	prefs, err := r.reports.Preferences(ctx)
	if err != nil {
		appLog.Warn("preferences unreadable, using defaults", "err", err.Error())
	}
	if !prefs.NotificationsEnabled {
		return false, nil
	}
	if err := r.notifier.Notify(ctx, rep); err != nil {
		return false, fmt.Errorf("notify: %w", err)
	}

	sent := reminder{Date: rep.Date, SadLampTime: rep.SadLampTime, SentAt: time.Now().UTC()}
	if err := kvstore.SaveJSON(ctx, r.store, kvstore.KeyLastReminder, sent); err != nil {
		// The next run will send it again.
		appLog.Error("save last reminder failed", err, "date", rep.Date)
	}
	return true, nil
}

// Run executes RunOnce immediately and then on the cron schedule until ctx
// is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.zone))
	job := func() {
		if _, err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}
	if _, err := c.AddFunc(r.spec, job); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.spec, err)
	}

	appLog.Info("refresh scheduler started", "schedule", r.spec, "timezone", r.zone.String())
	job()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}

// ValidateSpec checks a cron expression without scheduling anything.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
