package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sadlamp/internal/config"
)

const currentBody = `{
  "name": "Vancouver",
  "dt": 1768492800,
  "timezone": -28800,
  "weather": [{"main": "Clouds", "description": "overcast clouds"}],
  "main": {"temp": 278.15},
  "sys": {"sunrise": 1768492800, "sunset": 1768524000}
}`

const forecastBody = `{
  "city": {"name": "Vancouver", "timezone": -28800},
  "list": [
    {"dt": 1, "dt_txt": "2026-01-15 12:00:00", "main": {"temp": 281.15}, "weather": [{"main": "Rain", "description": "light rain"}]},
    {"dt": 2, "dt_txt": "2026-01-15 15:00:00", "main": {"temp": 290.0}, "weather": [{"main": "Clear", "description": "clear sky"}]},
    {"dt": 3, "dt_txt": "2026-01-16 00:00:00", "main": {"temp": 273.15}, "weather": [{"main": "Snow", "description": "snow"}]},
    {"dt": 4, "dt_txt": "2026-01-17 00:00:00", "weather": []}
  ]
}`

func newTestClient(t *testing.T, srv *httptest.Server, cacheDir string) *Client {
	t.Helper()
	cfg := config.DefaultConfig().Weather
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	cfg.CacheDir = cacheDir
	cfg.RequestsPerMinute = 6000
	return NewClient(cfg)
}

func TestClient_Current(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/weather" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("appid") != "test-key" {
			t.Errorf("appid = %q", r.URL.Query().Get("appid"))
		}
		if r.URL.Query().Get("lat") != "49.2827" {
			t.Errorf("lat = %q", r.URL.Query().Get("lat"))
		}
		_, _ = w.Write([]byte(currentBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	cur, err := c.Current(context.Background(), Coordinates{Latitude: 49.2827, Longitude: -123.1207})
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Main != "Clouds" || cur.Description != "overcast clouds" || cur.Place != "Vancouver" {
		t.Fatalf("Current = %+v", cur)
	}
	if cur.TempC != 5 {
		t.Fatalf("TempC = %v, want 5", cur.TempC)
	}
	if got := cur.Sunrise.Format("15:04"); got != "08:00" {
		t.Fatalf("sunrise local = %s, want 08:00", got)
	}
	if got := cur.Sunset.Format("15:04"); got != "16:40" {
		t.Fatalf("sunset local = %s, want 16:40", got)
	}
}

func TestClient_CurrentMissingDaylight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"weather":[{"main":"Clear"}],"main":{"temp":280}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	if _, err := c.Current(context.Background(), Coordinates{}); !errors.Is(err, ErrMissingDaylight) {
		t.Fatalf("err = %v, want ErrMissingDaylight", err)
	}
}

func TestClient_MissingAPIKey(t *testing.T) {
	c := NewClient(config.DefaultConfig().Weather)
	if _, err := c.Current(context.Background(), Coordinates{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Current err = %v", err)
	}
	if _, err := c.Forecast(context.Background(), Coordinates{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Forecast err = %v", err)
	}
}

func TestClient_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/forecast" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(forecastBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	days, err := c.Forecast(context.Background(), Coordinates{Latitude: 1, Longitude: 2})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	want := []ForecastDay{
		{Date: "2026-01-15", Main: "Rain", Description: "light rain", Temp: "8"},
		{Date: "2026-01-16", Main: "Snow", Description: "snow", Temp: "0"},
		{Date: "2026-01-17", Main: "N/A", Temp: "N/A"},
	}
	if len(days) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(days), len(want), days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day %d = %+v, want %+v", i, days[i], want[i])
		}
	}
}

func TestClient_ForecastEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"list":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	if _, err := c.Forecast(context.Background(), Coordinates{}); !errors.Is(err, ErrMissingForecast) {
		t.Fatalf("err = %v, want ErrMissingForecast", err)
	}
}

func TestClient_HTTPErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	_, err := c.Current(context.Background(), Coordinates{})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want status 401", err)
	}
}

func TestClient_CacheFreshAndStale(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(currentBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, t.TempDir())
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	at := Coordinates{Latitude: 49.2827, Longitude: -123.1207}

	if _, err := c.Current(ctx, at); err != nil {
		t.Fatalf("first Current: %v", err)
	}
	cur, err := c.Current(ctx, at)
	if err != nil {
		t.Fatalf("cached Current: %v", err)
	}
	if hits.Load() != 1 || !cur.FromCache {
		t.Fatalf("hits = %d, fromCache = %v; want 1, true", hits.Load(), cur.FromCache)
	}

	// Past the TTL with the upstream failing, the stale body is served.
	now = now.Add(time.Hour)
	fail.Store(true)
	cur, err = c.Current(ctx, at)
	if err != nil {
		t.Fatalf("stale Current: %v", err)
	}
	if hits.Load() != 2 || !cur.FromCache || cur.Main != "Clouds" {
		t.Fatalf("hits = %d, cur = %+v", hits.Load(), cur)
	}
}

func TestClient_NotModified(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(currentBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, t.TempDir())
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := c.Current(ctx, Coordinates{}); err != nil {
		t.Fatalf("first: %v", err)
	}
	now = now.Add(time.Hour)
	cur, err := c.Current(ctx, Coordinates{})
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if hits.Load() != 2 || !cur.FromCache {
		t.Fatalf("hits = %d, fromCache = %v", hits.Load(), cur.FromCache)
	}
}
