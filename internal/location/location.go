// Package location resolves the coordinates used for weather and daylight.
package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sadlamp/internal/config"
	"sadlamp/internal/kvstore"
	appLog "sadlamp/internal/log"
	"sadlamp/internal/weather"
)

// Provider returns the user's current coordinates.
type Provider interface {
	Current(ctx context.Context) (weather.Coordinates, error)
}

// Source tells where coordinates came from.
type Source string

const (
	SourceDevice  Source = "device"
	SourceConfig  Source = "config"
	SourceDefault Source = "default"
)

type stored struct {
	weather.Coordinates
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stored serves the last reported device location, falling back to the
// configured coordinates and then to Vancouver.
type Stored struct {
	kv  kvstore.Store
	cfg config.LocationConfig

	mu     sync.Mutex
	source Source
}

func NewStored(kv kvstore.Store, cfg config.LocationConfig) *Stored {
	return &Stored{kv: kv, cfg: cfg}
}

func (s *Stored) Current(ctx context.Context) (weather.Coordinates, error) {
	if !s.cfg.UseDefault {
		var rec stored
		ok, err := kvstore.LoadJSON(ctx, s.kv, kvstore.KeyUserLocation, &rec)
		if err != nil {
			// A corrupt record should not block the day's report.
			appLog.Warn("stored location unreadable, using fallback", "err", err.Error())
		} else if ok && rec.Coordinates.Validate() == nil {
			s.setSource(SourceDevice)
			return rec.Coordinates, nil
		}
	}

	c := weather.Coordinates{Latitude: s.cfg.Latitude, Longitude: s.cfg.Longitude}
	if (c.Latitude != 0 || c.Longitude != 0) && c.Validate() == nil {
		s.setSource(SourceConfig)
		return c, nil
	}
	s.setSource(SourceDefault)
	return weather.Coordinates{Latitude: config.DefaultLatitude, Longitude: config.DefaultLongitude}, nil
}

// Save records a device-reported location.
func (s *Stored) Save(ctx context.Context, c weather.Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}
	rec := stored{Coordinates: c, UpdatedAt: time.Now().UTC()}
	if err := kvstore.SaveJSON(ctx, s.kv, kvstore.KeyUserLocation, rec); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	appLog.Info("device location saved", "lat", c.Latitude, "lon", c.Longitude)
	return nil
}

// LastSource reports where the most recent Current call got its answer.
func (s *Stored) LastSource() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Stored) setSource(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}
