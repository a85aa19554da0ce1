package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"

	"flowbase/internal/models"
	"flowbase/internal/security"
)

const (
	previewUserAgent   = "Flowbase-LinkPreview/1.0"
	previewMaxBodySize = 2 * 1024 * 1024 // 2MB
	previewGlobalRate  = 10.0            // requests per second
)

// LinkPreviewer decorates a URL with page metadata. It never fails: on any
// error the returned link carries only the URL.
type LinkPreviewer interface {
	Preview(ctx context.Context, rawURL string) models.TaskLink
}

// LinkPreviewService fetches pages and extracts preview metadata with trafilatura
type LinkPreviewService struct {
	client  *http.Client
	guard   *security.URLGuard
	robots  *RobotsChecker
	limiter *HostRateLimiter
	cache   *cache.Cache
	timeout time.Duration
	metrics *Metrics
}

// NewLinkPreviewService creates a previewer with a per-link timeout
func NewLinkPreviewService(timeout time.Duration, guard *security.URLGuard, metrics *Metrics) *LinkPreviewService {
	if guard == nil {
		guard = &security.URLGuard{}
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
				Control:   guard.DialControl,
			}).DialContext,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return guard.Check(req.Context(), req.URL.String())
		},
	}

	return &LinkPreviewService{
		client:  client,
		guard:   guard,
		robots:  NewRobotsChecker(previewUserAgent, client),
		limiter: NewHostRateLimiter(previewGlobalRate),
		cache:   cache.New(6*time.Hour, 30*time.Minute),
		timeout: timeout,
		metrics: metrics,
	}
}

// Preview returns the link decorated with metadata, or the bare URL on failure
func (s *LinkPreviewService) Preview(ctx context.Context, rawURL string) models.TaskLink {
	if cached, found := s.cache.Get(rawURL); found {
		s.metrics.linkPreview("cached")
		return cached.(models.TaskLink)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, outcome, err := s.fetch(ctx, rawURL)
	s.metrics.linkPreview(outcome)
	if err != nil {
		log.Printf("⚠️  [PREVIEW] %s: %v", rawURL, err)
		return models.TaskLink{URL: rawURL}
	}

	s.cache.Set(rawURL, link, cache.DefaultExpiration)
	return link
}

func (s *LinkPreviewService) fetch(ctx context.Context, rawURL string) (models.TaskLink, string, error) {
	link := models.TaskLink{URL: rawURL}

	if err := s.guard.Check(ctx, rawURL); err != nil {
		return link, "blocked", err
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return link, "blocked", err
	}

	allowed, crawlDelay, err := s.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return link, "failed", err
	}
	if !allowed {
		return link, "blocked", fmt.Errorf("blocked by robots.txt")
	}

	if err := s.limiter.Wait(ctx, parsedURL.Host, crawlDelay); err != nil {
		return link, "failed", fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return link, "failed", err
	}
	req.Header.Set("User-Agent", previewUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return link, "failed", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return link, "failed", fmt.Errorf("HTTP error %d", resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); !strings.Contains(mediaType, "html") {
		return link, "failed", fmt.Errorf("unsupported content type %q", mediaType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, previewMaxBodySize))
	if err != nil {
		return link, "failed", fmt.Errorf("read body: %w", err)
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsedURL,
	})
	if err != nil {
		return link, "failed", fmt.Errorf("extract metadata: %w", err)
	}
	if result == nil {
		return link, "failed", fmt.Errorf("no metadata extracted")
	}

	md := result.Metadata
	link.Title = md.Title
	link.SiteName = md.Sitename
	if link.SiteName == "" {
		link.SiteName = md.Hostname
	}
	link.Description = md.Description
	link.Image = md.Image
	return link, "ok", nil
}

// PreviewAll previews every URL concurrently, preserving order
func PreviewAll(ctx context.Context, p LinkPreviewer, urls []string) []models.TaskLink {
	links := make([]models.TaskLink, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			links[i] = p.Preview(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return links
}
