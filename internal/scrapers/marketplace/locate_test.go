package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"posheet/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const productPage = `<html><head><meta property="og:image" content="//img.example/p.jpg"></head><body></body></html>`

type storefront struct {
	server *httptest.Server
	hits   atomic.Int64
	agent  atomic.Value
	lang   atomic.Value
}

func newStorefront(t *testing.T) *storefront {
	s := &storefront{}
	mux := http.NewServeMux()
	mux.HandleFunc("/shop/xyz/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.agent.Store(r.Header.Get("User-Agent"))
		s.lang.Store(r.Header.Get("Accept-Language"))
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write([]byte(productPage))
	})
	mux.HandleFunc("/shop/blank/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>nothing here</body></html>`))
	})
	mux.HandleFunc("/shop/broken/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func TestPageURL(t *testing.T) {
	require.Equal(t, "https://item.rakuten.co.jp/shop/xyz/", PageURL(DefaultBaseURL, "shop", "xyz-1"))
	require.Equal(t, "http://host/shop/ab/", PageURL("http://host/", " shop ", "ab-12-s"))
	require.Equal(t, "", PageURL(DefaultBaseURL, "", "xyz-1"))
	require.Equal(t, "", PageURL(DefaultBaseURL, "shop", ""))
	require.Equal(t, "", PageURL(DefaultBaseURL, "shop", "-1"))
}

func TestResolve(t *testing.T) {
	store := newStorefront(t)
	rec := &telemetry.Recorder{}
	client := NewClient(Options{BaseURL: store.server.URL}, rec)
	ctx := context.Background()

	found := client.Resolve(ctx, "xyz-1", "shop")
	require.Equal(t, OutcomeFound, found.Outcome)
	require.Equal(t, "https://img.example/p.jpg", found.ImageURL)
	require.Equal(t, "https://img.example/p.jpg", found.Sentinel())
	require.Equal(t, store.server.URL+"/shop/xyz/", found.PageURL)
	require.Equal(t, "xyz-1", found.SKU)
	require.Equal(t, UserAgent, store.agent.Load())
	require.Equal(t, AcceptLanguage, store.lang.Load())

	blank := client.Resolve(ctx, "blank", "shop")
	require.Equal(t, OutcomeNoImage, blank.Outcome)
	require.Equal(t, SentinelNoImage, blank.Sentinel())

	broken := client.Resolve(ctx, "broken-2", "shop")
	require.Equal(t, OutcomeFetchFailed, broken.Outcome)
	require.Equal(t, SentinelFetchFailed, broken.Sentinel())
	require.True(t, rec.Has("warning", report_resolve_fetch_page))

	missing := client.Resolve(ctx, "unknown", "shop")
	require.Equal(t, OutcomeFetchFailed, missing.Outcome)

	hits := store.hits.Load()
	skipped := client.Resolve(ctx, "xyz-1", "")
	require.Equal(t, OutcomeSkipped, skipped.Outcome)
	require.Equal(t, SentinelNoImage, skipped.Sentinel())
	require.Empty(t, skipped.PageURL)
	require.Equal(t, hits, store.hits.Load())
}

func TestResolveUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := NewClient(Options{BaseURL: baseURL}, &telemetry.Recorder{})
	res := client.Resolve(context.Background(), "xyz", "shop")
	require.Equal(t, OutcomeFetchFailed, res.Outcome)
}

func TestResolveCache(t *testing.T) {
	store := newStorefront(t)
	client := NewClient(Options{BaseURL: store.server.URL, CacheSize: 16}, &telemetry.Recorder{})
	ctx := context.Background()

	first := client.Resolve(ctx, "xyz-1", "shop")
	second := client.Resolve(ctx, "xyz-2", "shop")
	require.Equal(t, int64(1), store.hits.Load())
	require.Equal(t, first.ImageURL, second.ImageURL)
	require.Equal(t, "xyz-2", second.SKU)

	client.Resolve(ctx, "broken", "shop")
	client.Resolve(ctx, "broken", "shop")
	require.Equal(t, int64(3), store.hits.Load())
	require.Equal(t, 1, client.cache.len())

	client.PurgeCache()
	require.Equal(t, 0, client.cache.len())
	client.Resolve(ctx, "xyz-1", "shop")
	require.Equal(t, int64(4), store.hits.Load())
}

func TestResolveBodyLimit(t *testing.T) {
	store := newStorefront(t)
	client := NewClient(Options{BaseURL: store.server.URL, CacheSize: 16, MaxBodyBytes: 32}, &telemetry.Recorder{})

	res := client.Resolve(context.Background(), "xyz-1", "shop")
	require.Equal(t, OutcomeFetchFailed, res.Outcome)
	require.Equal(t, 0, client.cache.len())
}

func TestResolveRateLimited(t *testing.T) {
	store := newStorefront(t)
	client := NewClient(Options{BaseURL: store.server.URL, RequestsPerSecond: 100}, &telemetry.Recorder{})

	for i := 0; i < 3; i++ {
		res := client.Resolve(context.Background(), "xyz", "shop")
		require.Equal(t, OutcomeFound, res.Outcome)
	}
	require.Equal(t, int64(3), store.hits.Load())
}
