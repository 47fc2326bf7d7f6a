// Package holiday fetches public-holiday dates from the holidays-jp feed.
// The feed is consulted by the constraint compiler; failures degrade to
// generating without holiday hints.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// DefaultFeedURL serves a {"YYYY-MM-DD": "name"} document covering the
// surrounding years.
const DefaultFeedURL = "https://holidays-jp.github.io/api/v1/date.json"

const cacheTTL = 24 * time.Hour

// Client is a caching holiday feed client.
type Client struct {
	url  string
	http *http.Client

	mu        sync.Mutex
	dates     map[string]bool
	fetchedAt time.Time
}

// NewClient builds a client for the configured feed. HOLIDAY_FEED_URL
// overrides the default endpoint.
func NewClient() *Client {
	url := os.Getenv("HOLIDAY_FEED_URL")
	if url == "" {
		url = DefaultFeedURL
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// HolidayDates returns the sorted holiday dates inside [from, to].
func (c *Client) HolidayDates(ctx context.Context, from, to string) ([]string, error) {
	dates, err := c.allDates(ctx)
	if err != nil {
		return nil, err
	}
	var inRange []string
	for d := range dates {
		if d >= from && d <= to {
			inRange = append(inRange, d)
		}
	}
	sort.Strings(inRange)
	return inRange, nil
}

func (c *Client) allDates(ctx context.Context) (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dates != nil && time.Since(c.fetchedAt) < cacheTTL {
		return c.dates, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build holiday request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holidays: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday feed returned status %d", resp.StatusCode)
	}

	var feed map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode holiday feed: %w", err)
	}

	dates := make(map[string]bool, len(feed))
	for d := range feed {
		dates[d] = true
	}
	c.dates = dates
	c.fetchedAt = time.Now()
	return dates, nil
}
