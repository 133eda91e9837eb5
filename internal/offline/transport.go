package offline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront/internal/logger"
	"storefront/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize = 256

	// HeaderCache reports how a response was served: HIT, MISS or STALE.
	HeaderCache = "X-Offline-Cache"

	revalidateTimeout = 30 * time.Second

	apiPrefix = "/api/"
)

// DefaultAllowList holds the read-only catalog paths served cache-first.
var DefaultAllowList = []string{
	"/api/products",
	"/api/products/featured",
	"/api/products/filters/options",
}

const DefaultOfflinePage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Offline</title></head>
<body><h1>You are offline</h1><p>Check your connection and try again.</p></body></html>
`

type Options struct {
	AllowList   []string
	Size        int
	OfflinePage []byte
}

type entry struct {
	status int
	header http.Header
	body   []byte
	stored time.Time
}

// Transport caches successful GET responses. Allow-listed paths are served
// from cache and revalidated in the background. Other API calls always go to
// the network. Pages and static files go to the network first and fall back
// to the cache when the network fails.
type Transport struct {
	next        http.RoundTripper
	cache       *lru.Cache[string, *entry]
	allow       map[string]bool
	offlinePage []byte

	group   singleflight.Group
	pending sync.WaitGroup

	hits   metrics.Counter
	misses metrics.Counter
	stale  metrics.Counter
}

// Stats counts how responses were served since the transport was created.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Stale   uint64
	Entries int
	HitRate float64
}

func NewTransport(next http.RoundTripper, opts Options) (*Transport, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}

	allowList := opts.AllowList
	if allowList == nil {
		allowList = DefaultAllowList
	}
	allow := make(map[string]bool, len(allowList))
	for _, p := range allowList {
		allow[strings.TrimRight(p, "/")] = true
	}

	page := opts.OfflinePage
	if len(page) == 0 {
		page = []byte(DefaultOfflinePage)
	}

	return &Transport{next: next, cache: cache, allow: allow, offlinePage: page}, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}
	path := strings.TrimRight(req.URL.Path, "/")
	switch {
	case t.allow[path]:
		return t.cacheFirst(req)
	case isAPI(path):
		return t.next.RoundTrip(req)
	default:
		return t.networkFirst(req)
	}
}

// Len reports the number of cached responses.
func (t *Transport) Len() int {
	return t.cache.Len()
}

func (t *Transport) Stats() Stats {
	return Stats{
		Hits:    t.hits.Load(),
		Misses:  t.misses.Load(),
		Stale:   t.stale.Load(),
		Entries: t.cache.Len(),
		HitRate: t.hits.Ratio(&t.misses),
	}
}

func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	key := cacheKey(req)
	if e, ok := t.cache.Get(key); ok {
		t.hits.Inc()
		t.revalidate(req, key)
		return e.response(req, "HIT"), nil
	}
	t.misses.Inc()
	return t.fetch(req, key)
}

func (t *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	key := cacheKey(req)
	log := logger.Component(req.Context(), "offline")

	t.misses.Inc()
	resp, err := t.fetch(req, key)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}

	e, ok := t.cache.Get(key)
	if !ok {
		return resp, err
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.stale.Inc()

	log.Warn("serving cached response after network failure",
		zap.String("path", req.URL.Path),
		zap.Time("stored", e.stored),
		zap.Error(err),
	)
	return e.response(req, "STALE"), nil
}

// fetch performs the request and stores a 200 response.
func (t *Transport) fetch(req *http.Request, key string) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	t.cache.Add(key, &entry{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
		stored: time.Now(),
	})

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.Header.Set(HeaderCache, "MISS")
	return resp, nil
}

// revalidate refreshes key in the background. Concurrent refreshes of one
// key share a single request.
func (t *Transport) revalidate(req *http.Request, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), revalidateTimeout)
	bg := req.Clone(ctx)

	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		defer cancel()

		_, err, _ := t.group.Do(key, func() (any, error) {
			resp, err := t.fetch(bg, key)
			if err != nil {
				return nil, err
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, nil
		})
		if err != nil {
			logger.Component(ctx, "offline").Debug("background revalidation failed",
				zap.String("path", bg.URL.Path),
				zap.Error(err),
			)
		}
	}()
}

// wait blocks until background revalidations finish.
func (t *Transport) wait() {
	t.pending.Wait()
}

func (e *entry) response(req *http.Request, state string) *http.Response {
	header := e.header.Clone()
	header.Set(HeaderCache, state)
	return &http.Response{
		Status:        http.StatusText(e.status),
		StatusCode:    e.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
	}
}

func isAPI(path string) bool {
	return path+"/" == apiPrefix || strings.HasPrefix(path, apiPrefix)
}

// cacheKey separates responses by identity so one shopper never sees
// another's cached cart or orders.
func cacheKey(req *http.Request) string {
	ident := req.Header.Get("Authorization") + "|" + req.Header.Get("X-Cart-Session")
	sum := sha256.Sum256([]byte(ident))
	return req.URL.String() + "#" + hex.EncodeToString(sum[:8])
}
