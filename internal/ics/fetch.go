// Package ics imports busy time from subscribed iCalendar feeds.
package ics

import (
	"context"
	"fmt"
	"net/http"

	"sadlamp/internal/config"
	"sadlamp/internal/httpcache"
	appLog "sadlamp/internal/log"
)

// Feed is one calendar subscription.
type Feed struct {
	ID   string
	Name string
	URL  string
}

// FeedsFromConfig drops entries without a URL and fills missing IDs.
func FeedsFromConfig(in []config.ICSConfig) []Feed {
	out := make([]Feed, 0, len(in))
	for i, c := range in {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("ics-%d", i+1)
		}
		out = append(out, Feed{ID: id, Name: c.Name, URL: c.URL})
	}
	return out
}

// FetchResult is a feed body from the network or the cache.
type FetchResult struct {
	Feed      Feed
	Body      []byte
	FromCache bool
}

// Fetcher downloads feeds with conditional requests. Feed URLs often carry
// a private token in the path, so logs only show the host.
type Fetcher struct {
	http *httpcache.Client
}

func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{http: httpcache.New(httpcache.Options{
		Name:   "ics",
		Dir:    cacheDir,
		Redact: httpcache.RedactHost,
	})}
}

// FetchAll fetches every feed. Failures are logged and returned alongside
// the bodies that did load.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		res, err := f.http.Get(ctx, feed.URL, http.Header{"Accept": {"text/calendar"}})
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", feed.ID, "url", httpcache.RedactHost(feed.URL))
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		results = append(results, FetchResult{Feed: feed, Body: res.Body, FromCache: res.FromCache})
	}
	return results, errs
}
