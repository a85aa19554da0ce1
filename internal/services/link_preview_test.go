package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowbase/internal/security"
)

func previewPage() string {
	paragraph := "The launch plan covers the rollout schedule, the owners of every workstream and the checks " +
		"each team signs off before the release goes out to customers. "
	var body strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&body, "<p>%s</p>\n", strings.Repeat(paragraph, 2))
	}
	return `<!DOCTYPE html>
<html lang="en">
<head>
<title>Launch plan</title>
<meta property="og:title" content="Launch plan">
<meta property="og:site_name" content="Example Docs">
<meta name="description" content="Everything about the launch">
<meta property="og:description" content="Everything about the launch">
</head>
<body><article><h1>Launch plan</h1>
` + body.String() + `</article></body>
</html>`
}

func newPreviewServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, previewPage())
	})
	mux.HandleFunc("/doc", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, previewPage())
	})
	mux.HandleFunc("/file.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLinkPreviewExtractsMetadata(t *testing.T) {
	var hits atomic.Int32
	srv := newPreviewServer(t, &hits)
	svc := NewLinkPreviewService(5*time.Second, &security.URLGuard{AllowPrivate: true}, nil)

	link := svc.Preview(context.Background(), srv.URL+"/doc")
	assert.Equal(t, srv.URL+"/doc", link.URL)
	assert.Equal(t, "Launch plan", link.Title)
	assert.Equal(t, "Everything about the launch", link.Description)

	again := svc.Preview(context.Background(), srv.URL+"/doc")
	assert.Equal(t, link, again)
	assert.Equal(t, int32(1), hits.Load(), "second preview is served from cache")
}

func TestLinkPreviewDegradesToURL(t *testing.T) {
	var hits atomic.Int32
	srv := newPreviewServer(t, &hits)
	permissive := NewLinkPreviewService(5*time.Second, &security.URLGuard{AllowPrivate: true}, nil)
	strict := NewLinkPreviewService(5*time.Second, &security.URLGuard{}, nil)

	tests := []struct {
		name string
		svc  *LinkPreviewService
		url  string
	}{
		{"non-html content", permissive, srv.URL + "/file.pdf"},
		{"http error", permissive, srv.URL + "/missing"},
		{"unsupported scheme", permissive, "ftp://example.com/file"},
		{"loopback blocked", strict, srv.URL + "/private/page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := tt.svc.Preview(context.Background(), tt.url)
			assert.Equal(t, tt.url, link.URL)
			assert.Empty(t, link.Title)
			assert.Empty(t, link.Description)
		})
	}
}

func TestLinkPreviewDialerRefusesPrivateAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := newPreviewServer(t, &hits)
	strict := NewLinkPreviewService(5*time.Second, &security.URLGuard{}, nil)

	// the URL check is bypassed here, as after a DNS answer changes
	resp, err := strict.client.Get(srv.URL + "/doc")
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private IP address")
	assert.Zero(t, hits.Load())
}

func TestPreviewAllKeepsOrder(t *testing.T) {
	urls := []string{"https://a.example", "https://b.example", "https://c.example"}
	links := PreviewAll(context.Background(), stubPreviewer{}, urls)

	for i, u := range urls {
		assert.Equal(t, u, links[i].URL)
		assert.Equal(t, "Preview of "+u, links[i].Title)
	}
	assert.Empty(t, PreviewAll(context.Background(), stubPreviewer{}, nil))
}
