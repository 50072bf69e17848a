package openmeteo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"evstudy.dev/zmap/frame"
	"evstudy.dev/zmap/math"
	"evstudy.dev/zmap/metrics"
	"evstudy.dev/zmap/raster"
	ms "evstudy.dev/zmap/settings"
)

// ErrNoData is returned when the service has no elevation for a point.
var ErrNoData = raster.ErrNoData

var ErrInvalidPosition = errors.New("position outside lon/lat range")

const ELEVATION_PATH = "/v1/elevation"

type Options struct {
	URL               string
	RequestsPerMinute int
	Tries             int
	Timeout           time.Duration
	InitialBackoff    time.Duration
	HTTPClient        *http.Client
	Metrics           *metrics.Collector
}

type result struct {
	z   float64
	err error
}

// Client looks up elevations one coordinate at a time. Results, including
// points without data, are cached for the lifetime of the client.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	tries   uint
	initial time.Duration
	metrics *metrics.Collector

	mu    sync.Mutex
	cache map[string]result
}

func New(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = ms.OPEN_METEO_URL
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = ms.OPEN_METEO_RATE
	}
	if opts.Tries <= 0 {
		opts.Tries = ms.OPEN_METEO_TRIES
	}
	if opts.Timeout <= 0 {
		opts.Timeout = ms.OPEN_METEO_WAIT
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		base:    strings.TrimRight(opts.URL, "/"),
		http:    client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1),
		tries:   uint(opts.Tries),
		initial: opts.InitialBackoff,
		metrics: opts.Metrics,
		cache:   map[string]result{},
	}
}

// CRS is the coordinate system Elevation expects.
func (c *Client) CRS() string {
	return frame.WGS84
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func key(p orb.Point) (lat, lon string) {
	return strconv.FormatFloat(p[1], 'f', 6, 64), strconv.FormatFloat(p[0], 'f', 6, 64)
}

// Elevation returns the elevation at p given as (lon, lat) in degrees.
func (c *Client) Elevation(ctx context.Context, p orb.Point) (float64, error) {
	if pos := math.NewPosition(p[1], p[0]); !pos.Valid() {
		return 0, errors.Wrapf(ErrInvalidPosition, "lon %f lat %f", p[0], p[1])
	}
	lat, lon := key(p)
	k := lat + "," + lon

	c.mu.Lock()
	cached, ok := c.cache[k]
	c.mu.Unlock()
	if ok {
		return cached.z, cached.err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	z, err := backoff.Retry(ctx, func() (float64, error) {
		return c.fetch(ctx, lat, lon)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.tries))

	if err == nil || errors.Is(err, ErrNoData) {
		c.mu.Lock()
		c.cache[k] = result{z: z, err: err}
		c.mu.Unlock()
	}
	return z, err
}

type response struct {
	Elevation []*float64 `json:"elevation"`
	Error     bool       `json:"error"`
	Reason    string     `json:"reason"`
}

func (c *Client) fetch(ctx context.Context, lat, lon string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, backoff.Permanent(err)
	}

	q := url.Values{}
	q.Set("latitude", lat)
	q.Set("longitude", lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+ELEVATION_PATH+"?"+q.Encode(), nil)
	if err != nil {
		return 0, backoff.Permanent(errors.Wrap(err, "could not build elevation request"))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RemoteRequest("error")
		slog.Debug("elevation request failed", "error", err)
		return 0, errors.Wrap(err, "elevation request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.RemoteRequest("error")
		return 0, errors.Wrap(err, "could not read elevation response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.metrics.RemoteRequest("retry")
		return 0, errors.Errorf("elevation service returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		c.metrics.RemoteRequest("rejected")
		var r response
		_ = json.Unmarshal(body, &r)
		return 0, backoff.Permanent(errors.Errorf("elevation service returned %s: %s", resp.Status, r.Reason))
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		c.metrics.RemoteRequest("rejected")
		return 0, backoff.Permanent(errors.Wrap(err, "could not decode elevation response"))
	}
	c.metrics.RemoteRequest("ok")
	if len(r.Elevation) == 0 || r.Elevation[0] == nil {
		return 0, backoff.Permanent(errors.Wrapf(ErrNoData, "no elevation at %s,%s", lat, lon))
	}
	return *r.Elevation[0], nil
}
