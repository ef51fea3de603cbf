package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sadlamp/internal/config"
	"sadlamp/internal/httpcache"
)

// Provider is the narrow interface the services use.
type Provider interface {
	Current(ctx context.Context, at Coordinates) (*Current, error)
	Forecast(ctx context.Context, at Coordinates) ([]ForecastDay, error)
}

// Client talks to the OpenWeatherMap 2.5 API.
type Client struct {
	apiKey  string
	baseURL string
	fetch   *httpcache.Client
	now     func() time.Time
}

// NewClient builds a client from config. An empty API key is allowed; calls
// then fail with ErrMissingAPIKey.
func NewClient(cfg config.WeatherConfig) *Client {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 50
	}
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		now:     time.Now,
	}
	c.fetch = httpcache.New(httpcache.Options{
		Name:    "weather",
		Dir:     cfg.CacheDir,
		TTL:     ttl,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		Redact:  httpcache.RedactQuery("appid"),
		Now:     func() time.Time { return c.now() },
	})
	return c
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type owmCurrent struct {
	Name    string         `json:"name"`
	Dt      int64          `json:"dt"`
	Weather []owmCondition `json:"weather"`
	Main    *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Sys *struct {
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
}

type owmForecast struct {
	List []struct {
		Dt    int64  `json:"dt"`
		DtTxt string `json:"dt_txt"`
		Main  *struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []owmCondition `json:"weather"`
	} `json:"list"`
	City *struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

// Current fetches /data/2.5/weather. Sunrise and sunset are returned in the
// location's own UTC offset.
func (c *Client) Current(ctx context.Context, at Coordinates) (*Current, error) {
	body, fromCache, err := c.get(ctx, "/data/2.5/weather", at)
	if err != nil {
		return nil, err
	}

	var resp owmCurrent
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weather: decode current: %w", err)
	}
	if resp.Sys == nil || resp.Sys.Sunrise == nil || resp.Sys.Sunset == nil {
		return nil, ErrMissingDaylight
	}

	zone := time.FixedZone("", resp.Timezone)
	out := &Current{
		Place:      resp.Name,
		Main:       "N/A",
		Sunrise:    time.Unix(*resp.Sys.Sunrise, 0).In(zone),
		Sunset:     time.Unix(*resp.Sys.Sunset, 0).In(zone),
		ObservedAt: time.Unix(resp.Dt, 0).In(zone),
		FromCache:  fromCache,
	}
	if len(resp.Weather) > 0 {
		out.Main = resp.Weather[0].Main
		out.Description = resp.Weather[0].Description
	}
	if resp.Main != nil {
		out.TempC = math.Round(kelvinToCelsius(resp.Main.Temp)*10) / 10
	}
	return out, nil
}

// Forecast fetches /data/2.5/forecast and keeps the first sample of each date.
func (c *Client) Forecast(ctx context.Context, at Coordinates) ([]ForecastDay, error) {
	body, _, err := c.get(ctx, "/data/2.5/forecast", at)
	if err != nil {
		return nil, err
	}

	var resp owmForecast
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weather: decode forecast: %w", err)
	}
	if len(resp.List) == 0 || resp.City == nil {
		return nil, ErrMissingForecast
	}

	days := make([]ForecastDay, 0, 6)
	seen := make(map[string]bool)
	for _, e := range resp.List {
		date, _, _ := strings.Cut(e.DtTxt, " ")
		if date == "" || seen[date] {
			continue
		}
		seen[date] = true

		day := ForecastDay{Date: date, Main: "N/A", Temp: "N/A"}
		if len(e.Weather) > 0 {
			day.Main = e.Weather[0].Main
			day.Description = e.Weather[0].Description
		}
		if e.Main != nil && e.Main.Temp != 0 {
			day.Temp = strconv.Itoa(int(math.Round(kelvinToCelsius(e.Main.Temp))))
		}
		days = append(days, day)
	}
	return days, nil
}

// get performs a throttled, cached GET against path for the coordinates.
func (c *Client) get(ctx context.Context, path string, at Coordinates) ([]byte, bool, error) {
	if c.apiKey == "" {
		return nil, false, ErrMissingAPIKey
	}
	if err := at.Validate(); err != nil {
		return nil, false, fmt.Errorf("weather: %w", err)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(at.Latitude, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(at.Longitude, 'f', 4, 64))
	q.Set("appid", c.apiKey)

	res, err := c.fetch.Get(ctx, c.baseURL+path+"?"+q.Encode(), http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, false, fmt.Errorf("weather: %w", err)
	}
	return res.Body, res.FromCache, nil
}
