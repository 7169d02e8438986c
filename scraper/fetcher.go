package scraper

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/andybalholm/brotli"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only, so the server never negotiates HTTP/2 over the utls connection.
var chromeH1Spec *tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = &spec
}

// FetchedPage is the raw output of a static fetch.
type FetchedPage struct {
	HTML        string
	StatusCode  int
	FinalURL    string
	ContentType string
}

// Fetcher performs the single static GET behind basic scrapes.
// It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBody   int64
	hosts     *hostLimiter
	robots    *RobotsAgent
}

// NewFetcher builds a Fetcher whose HTTPS connections carry a Chrome TLS
// fingerprint.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		DialTLSContext:      dialTLSChrome,
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return newFetcher(cfg, &http.Client{Transport: transport})
}

func newFetcher(cfg config.FetchConfig, client *http.Client) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}

	f := &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxBody:   cfg.MaxBodyBytes,
		hosts:     newHostLimiter(cfg.HostRPS, cfg.HostBurst),
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsAgent(client, cfg.UserAgent, 30*time.Minute)
	}
	return f
}

// Fetch issues one GET for target and returns the body decoded to UTF-8.
// Non-2xx statuses, timeouts and robots.txt denials are errors. No retries.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*FetchedPage, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: parse url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.robots != nil && !f.robots.Allowed(ctx, u) {
		return nil, fmt.Errorf("httpfetch: disallowed by robots.txt: %s", target)
	}

	if err := f.hosts.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("httpfetch: host rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("httpfetch: timeout after %s: %w", f.timeout, err)
		}
		return nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, target)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}

	return &FetchedPage{
		HTML:        body,
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// readBody undoes Content-Encoding, caps the size and transcodes to UTF-8.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("httpfetch: gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	// The cap applies to decompressed bytes before transcoding.
	raw, err := io.ReadAll(io.LimitReader(reader, f.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("httpfetch: read body: %w", err)
	}
	if int64(len(raw)) > f.maxBody {
		return "", fmt.Errorf("httpfetch: response body exceeds %d bytes", f.maxBody)
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("httpfetch: charset decode: %w", err)
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("httpfetch: transcode body: %w", err)
	}
	return string(body), nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	var tlsConn *tls.UConn
	if chromeH1Spec != nil {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
		}
	} else {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, tls.HelloGolang)
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// hostLimiterSweepEvery bounds how often idle hosts are dropped.
const hostLimiterSweepEvery = 10 * time.Minute

// hostLimiter paces outbound fetches per target host. Hosts idle for longer
// than the sweep interval (and fully refilled) are forgotten.
type hostLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*hostEntry
	perHost   rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newHostLimiter(rps float64, burst int) *hostLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	idle := hostLimiterSweepEvery
	if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
		idle = refill
	}
	return &hostLimiter{
		limiters:  make(map[string]*hostEntry),
		perHost:   rate.Limit(rps),
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Wait blocks until host may be fetched or ctx ends.
func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	host = strings.ToLower(host)

	h.mu.Lock()
	now := h.now()
	if now.Sub(h.lastSweep) >= hostLimiterSweepEvery {
		h.sweepLocked(now)
	}
	entry, ok := h.limiters[host]
	if !ok {
		entry = &hostEntry{limiter: rate.NewLimiter(h.perHost, h.burst)}
		h.limiters[host] = entry
	}
	entry.lastSeen = now
	h.mu.Unlock()

	return entry.limiter.Wait(ctx)
}

// Len returns the number of tracked hosts.
func (h *hostLimiter) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.limiters)
}

func (h *hostLimiter) sweepLocked(now time.Time) {
	for host, e := range h.limiters {
		if now.Sub(e.lastSeen) >= h.idle {
			delete(h.limiters, host)
		}
	}
	h.lastSweep = now
}
