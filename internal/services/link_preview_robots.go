package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// RobotsChecker handles robots.txt fetching and compliance checking
type RobotsChecker struct {
	cache     *cache.Cache
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a robots.txt checker that fetches with client
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		cache:     cache.New(24*time.Hour, 1*time.Hour), // Cache robots.txt for 24 hours
		userAgent: userAgent,
		client:    client,
	}
}

// CanFetch checks if the URL can be fetched according to robots.txt.
// It returns the crawl delay the host asks for.
func (rc *RobotsChecker) CanFetch(ctx context.Context, urlStr string) (bool, time.Duration, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false, 0, fmt.Errorf("invalid URL: %w", err)
	}

	origin := parsedURL.Scheme + "://" + parsedURL.Host

	robotsData, err := rc.robotsFor(ctx, origin)
	if err != nil || robotsData == nil {
		// Missing or unreadable robots.txt allows everything
		return true, time.Second, nil
	}

	group := robotsData.FindGroup(rc.userAgent)
	return group.Test(parsedURL.Path), rc.getCrawlDelay(group), nil
}

func (rc *RobotsChecker) robotsFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	if cached, found := rc.cache.Get(origin); found {
		return cached.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}

	// FromStatusAndBytes treats 4xx as allow-all and 5xx as disallow-all
	robotsData, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	rc.cache.Set(origin, robotsData, cache.DefaultExpiration)
	return robotsData, nil
}

// getCrawlDelay extracts crawl delay from robots.txt group, capped at 10 seconds
func (rc *RobotsChecker) getCrawlDelay(group *robotstxt.Group) time.Duration {
	if group.CrawlDelay > 0 {
		if group.CrawlDelay > 10*time.Second {
			return 10 * time.Second
		}
		return group.CrawlDelay
	}
	return time.Second
}
