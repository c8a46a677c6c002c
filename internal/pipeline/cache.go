package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vyrodovalexey/avrouter/internal/cache"
	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// CacheHeader reports whether a response was served from cache.
const CacheHeader = "X-Cache"

// cachedResponse is the stored form of a cacheable response.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

// Cached serves GET responses from the response cache. Only 2xx
// results are stored; Cache-Control no-store or no-cache on the
// request bypasses the cache entirely. Concurrent misses on one key
// collapse into a single handler run via singleflight.
func Cached(store cache.Cache, ttl time.Duration, logger observability.Logger) Stage {
	group := &singleflight.Group{}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if req.Method != http.MethodGet || bypassesCache(req) {
				return next(ctx, req)
			}

			key := cache.Key(req.Method, req.Pattern, req.Path, req.Query)

			if resp, ok := readCached(ctx, store, key); ok {
				resp.SetHeader(CacheHeader, "HIT")
				return resp
			}

			shared, err, _ := group.Do(key, func() (any, error) {
				// A population may have landed between the miss and
				// this flight.
				if resp, ok := readCached(ctx, store, key); ok {
					resp.SetHeader(CacheHeader, "HIT")
					return resp, nil
				}

				resp := next(ctx, req)
				if resp != nil && resp.Status >= 200 && resp.Status < 300 {
					writeCached(ctx, store, key, resp, ttl, logger)
				}
				return resp, nil
			})
			if err != nil || shared == nil {
				return next(ctx, req)
			}

			// The flight result is shared by every waiter; work on a
			// copy so header writes do not race.
			resp := shared.(*Response)
			if resp == nil {
				return nil
			}
			out := &Response{Status: resp.Status, Header: resp.Header.Clone(), Body: resp.Body}
			if out.Header.Get(CacheHeader) == "" {
				out.SetHeader(CacheHeader, "MISS")
			}
			return out
		}
	}
}

// bypassesCache reports whether the request opted out of caching.
func bypassesCache(req *Request) bool {
	cc := strings.ToLower(req.Header.Get("Cache-Control"))
	return strings.Contains(cc, "no-store") || strings.Contains(cc, "no-cache")
}

// readCached loads and decodes a cached response.
func readCached(ctx context.Context, store cache.Cache, key string) (*Response, bool) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}

	header := http.Header{}
	for k, vs := range cached.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	return &Response{
		Status: cached.Status,
		Header: header,
		Body:   cached.Body,
	}, true
}

// writeCached serializes and stores a response. Store failures are
// logged, not surfaced.
func writeCached(ctx context.Context, store cache.Cache, key string, resp *Response, ttl time.Duration, logger observability.Logger) {
	header := http.Header{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}

	data, err := json.Marshal(cachedResponse{
		Status: resp.Status,
		Header: header,
		Body:   resp.Body,
	})
	if err != nil {
		return
	}

	if err := store.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("failed to store cached response",
			observability.String("key", key),
			observability.Error(err),
		)
	}
}
