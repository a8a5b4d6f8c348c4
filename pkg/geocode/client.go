// Package geocode resolves postal addresses to coordinates via the
// Nominatim search API, with an in-process cache and a per-state centroid
// fallback. Resolution always terminates in a usable coordinate: an
// address that cannot be matched falls back to its state centroid, and an
// unrecognized state falls back to the zero/zero sentinel.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/haven-collective/careatlas/internal/resilience"
)

// DefaultBaseURL is the public Nominatim endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Result holds a resolved coordinate and where it came from.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"` // "nominatim", "cache", "centroid", "sentinel"
}

// Client resolves an address to coordinates.
type Client interface {
	Resolve(ctx context.Context, address, city, state string) (Result, error)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.httpClient = hc }
}

// WithBaseURL overrides the Nominatim endpoint (used by tests and
// self-hosted instances).
func WithBaseURL(u string) Option {
	return func(g *geocoder) { g.baseURL = u }
}

// WithRateLimit sets the requests-per-second limit for upstream calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) { g.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithEmptyRetries sets how many times an empty (but successful) lookup is
// re-attempted before falling back to the centroid table.
func WithEmptyRetries(n int) Option {
	return func(g *geocoder) { g.emptyRetries = n }
}

type geocoder struct {
	httpClient   *http.Client
	baseURL      string
	limiter      *rate.Limiter
	cache        *Cache
	group        singleflight.Group
	emptyRetries int
}

// NewClient creates a geocoding Client. The cache is owned by the returned
// client and lives for the process lifetime.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      DefaultBaseURL,
		limiter:      rate.NewLimiter(1, 1), // shared public endpoint, keep to 1 req/s
		cache:        NewCache(),
		emptyRetries: 3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// nominatimMatch is one candidate in a Nominatim search response.
// Coordinates arrive as strings.
type nominatimMatch struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// errNoMatches marks a valid-but-empty response. It drives the semantic
// retry policy, which is distinct from the transport retry: "no match
// found" is not "server down".
var errNoMatches = eris.New("geocode: no matches")

// Resolve looks up the cache, then the upstream service with semantic
// retries, then the centroid table. It returns an error only for context
// cancellation; every other outcome is a usable coordinate.
func (g *geocoder) Resolve(ctx context.Context, address, city, state string) (Result, error) {
	key := cacheKey(address, city, state)
	if hit, ok := g.cache.Get(key); ok {
		return Result{Latitude: hit.Latitude, Longitude: hit.Longitude, Source: "cache"}, nil
	}

	// Collapse concurrent lookups of the same address (the on-demand
	// generation path can race the periodic cycle).
	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.resolveUncached(ctx, address, city, state)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (g *geocoder) resolveUncached(ctx context.Context, address, city, state string) (Result, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    g.emptyRetries + 1,
		InitialBackoff: time.Second,
		Multiplier:     2.0,
		// Empty results and transport failures both re-attempt here;
		// the fallback below absorbs whatever remains.
		ShouldRetry: func(error) bool { return true },
		OnRetry:     resilience.RetryLogger("nominatim", "search"),
	}

	match, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (nominatimMatch, error) {
		return g.search(ctx, address, city, state)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, eris.Wrap(ctx.Err(), "geocode: resolve canceled")
		}
		return g.fallback(address, city, state), nil
	}

	lat, latErr := strconv.ParseFloat(match.Lat, 64)
	lon, lonErr := strconv.ParseFloat(match.Lon, 64)
	if latErr != nil || lonErr != nil {
		zap.L().Warn("geocode: unparseable coordinates in match",
			zap.String("lat", match.Lat),
			zap.String("lon", match.Lon),
		)
		return g.fallback(address, city, state), nil
	}

	g.cache.Set(cacheKey(address, city, state), Coordinates{Latitude: lat, Longitude: lon})
	return Result{Latitude: lat, Longitude: lon, Source: "nominatim"}, nil
}

// search performs one upstream lookup. An empty candidate list returns
// errNoMatches so the semantic retry re-attempts it.
func (g *geocoder) search(ctx context.Context, address, city, state string) (nominatimMatch, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nominatimMatch{}, eris.Wrap(err, "geocode: rate limiter wait")
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", fmt.Sprintf("%s, %s, %s", address, city, state))
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nominatimMatch{}, eris.Wrap(err, "geocode: create request")
	}
	req.Header.Set("User-Agent", "careatlas/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nominatimMatch{}, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nominatimMatch{}, eris.Errorf("geocode: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nominatimMatch{}, eris.Wrap(err, "geocode: read body")
	}

	var matches []nominatimMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nominatimMatch{}, eris.Wrap(err, "geocode: decode response")
	}
	if len(matches) == 0 {
		return nominatimMatch{}, errNoMatches
	}
	return matches[0], nil
}

func (g *geocoder) fallback(address, city, state string) Result {
	if c, ok := StateCentroid(state); ok {
		zap.L().Warn("geocode: falling back to state centroid",
			zap.String("address", address),
			zap.String("city", city),
			zap.String("state", state),
		)
		return Result{Latitude: c.Latitude, Longitude: c.Longitude, Source: "centroid"}
	}

	zap.L().Warn("geocode: unrecognized state, using zero sentinel",
		zap.String("state", state),
	)
	return Result{Source: "sentinel"}
}
