// Package probe observes the externally visible address, directly or through
// the Tor SOCKS port. Probe failures are logged and reported as empty
// results; they are never returned as errors.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/config"
	"grimm.is/tornet/internal/logging"
)

// MaxTimeout caps every probe.
const MaxTimeout = 10 * time.Second

const maxBody = 64 << 10

// Options configures endpoints and limits.
type Options struct {
	Timeout         time.Duration
	SocksAddr       string
	IPURL           string
	GeoURL          string
	InfoURL         string
	ConnectivityURL string
	LeakURLs        []string
}

// DefaultOptions returns the public endpoints tornet probes by default.
func DefaultOptions() Options {
	return Options{
		Timeout:         MaxTimeout,
		SocksAddr:       brand.SocksAddr,
		IPURL:           "https://api.ipify.org",
		GeoURL:          "https://ipapi.co/json/",
		InfoURL:         "http://ip-api.com/json/",
		ConnectivityURL: "http://www.google.com",
		LeakURLs: []string{
			"https://dnsleaktest.com",
			"https://ipleak.net",
			"https://www.dnsleaktest.com",
		},
	}
}

// WithConfig overlays non-zero config values onto o.
func (o Options) WithConfig(c config.ProbeConfig) Options {
	if c.Timeout > 0 {
		o.Timeout = time.Duration(c.Timeout) * time.Second
	}
	if c.SocksAddr != "" {
		o.SocksAddr = c.SocksAddr
	}
	if c.IPURL != "" {
		o.IPURL = c.IPURL
	}
	if c.GeoURL != "" {
		o.GeoURL = c.GeoURL
	}
	if c.InfoURL != "" {
		o.InfoURL = c.InfoURL
	}
	if len(c.LeakURLs) > 0 {
		o.LeakURLs = append([]string(nil), c.LeakURLs...)
	}
	return o
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 || o.Timeout > MaxTimeout {
		return MaxTimeout
	}
	return o.Timeout
}

// Result is one address observation. An empty IP means unknown.
type Result struct {
	IP          string `json:"ip,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country_name,omitempty"`
}

// Known reports whether the probe produced an address.
func (r Result) Known() bool { return r.IP != "" }

// LeakResult is the outcome of fetching one leak-test endpoint through Tor.
type LeakResult struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Observer receives probe timings. The metrics package implements it.
type Observer interface {
	ObserveProbe(kind string, ok bool, d time.Duration)
}

// Prober performs network probes.
type Prober struct {
	Options Options
	// Direct and Tor are the HTTP clients for each route.
	Direct *http.Client
	Tor    *http.Client
	// TorRunning decides the route for CurrentAddress.
	TorRunning func() bool
	Observer   Observer
	Logger     *logging.Logger
}

// New builds a Prober whose Tor client dials through the SOCKS5 endpoint.
// Hostnames are resolved by the proxy so lookups do not leak.
func New(opts Options, torRunning func() bool, logger *logging.Logger) (*Prober, error) {
	if logger == nil {
		logger = logging.WithComponent("probe")
	}

	dialer, err := proxy.SOCKS5("tcp", opts.SocksAddr, nil, &net.Dialer{Timeout: opts.timeout()})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
	}

	torTransport := &http.Transport{
		DialContext:       cd.DialContext,
		DisableKeepAlives: true,
	}

	return &Prober{
		Options:    opts,
		Direct:     &http.Client{Transport: &http.Transport{Proxy: nil, DisableKeepAlives: true}},
		Tor:        &http.Client{Transport: torTransport},
		TorRunning: torRunning,
		Logger:     logger,
	}, nil
}

func (p *Prober) observe(kind string, ok bool, start time.Time) {
	if p.Observer != nil {
		p.Observer.ObserveProbe(kind, ok, time.Since(start))
	}
}

// get fetches url with the probe timeout and returns the body of a 2xx
// response.
func (p *Prober) get(ctx context.Context, client *http.Client, url string, timeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, &StatusError{Code: resp.StatusCode}
	}
	return resp.StatusCode, body, nil
}

func (p *Prober) plainAddress(ctx context.Context, client *http.Client, kind string) Result {
	start := time.Now()
	_, body, err := p.get(ctx, client, p.Options.IPURL, p.Options.timeout())
	ip := strings.TrimSpace(string(body))
	if err == nil && net.ParseIP(ip) == nil {
		err = fmt.Errorf("response is not an IP address: %q", truncate(ip, 64))
	}
	p.observe(kind, err == nil, start)
	if err != nil {
		if ctx.Err() == nil {
			p.Logger.Warn("address probe failed", "route", kind, "error", err)
		}
		return Result{}
	}
	return Result{IP: ip}
}

// CurrentAddress probes through Tor when it is running and directly
// otherwise.
func (p *Prober) CurrentAddress(ctx context.Context) Result {
	if p.TorRunning != nil && p.TorRunning() {
		return p.plainAddress(ctx, p.Tor, "tor")
	}
	return p.plainAddress(ctx, p.Direct, "direct")
}

// TorAddress probes through Tor unconditionally.
func (p *Prober) TorAddress(ctx context.Context) Result {
	return p.plainAddress(ctx, p.Tor, "tor")
}

// AddressWithGeo asks the geolocation endpoint through Tor and falls back to
// the plain Tor address probe on any failure.
func (p *Prober) AddressWithGeo(ctx context.Context) Result {
	start := time.Now()
	_, body, err := p.get(ctx, p.Tor, p.Options.GeoURL, p.Options.timeout())
	if err == nil {
		var geo struct {
			IP          string `json:"ip"`
			CountryCode string `json:"country_code"`
			CountryName string `json:"country_name"`
		}
		if err = json.Unmarshal(body, &geo); err == nil && geo.IP != "" {
			p.observe("geo", true, start)
			return Result{IP: geo.IP, CountryCode: geo.CountryCode, CountryName: geo.CountryName}
		}
		if err == nil {
			err = fmt.Errorf("geolocation response has no ip")
		}
	}
	p.observe("geo", false, start)
	if ctx.Err() != nil {
		return Result{}
	}
	p.Logger.Debug("geolocation probe failed, falling back", "error", err)
	return p.TorAddress(ctx)
}

// IPInfo looks up details for ip directly. It returns nil unless the
// service answers with status "success".
func (p *Prober) IPInfo(ctx context.Context, ip string) map[string]any {
	start := time.Now()
	_, body, err := p.get(ctx, p.Direct, p.Options.InfoURL+ip, min(5*time.Second, p.Options.timeout()))
	var info map[string]any
	if err == nil {
		err = json.Unmarshal(body, &info)
	}
	ok := err == nil && info["status"] == "success"
	p.observe("info", ok, start)
	if !ok {
		if err != nil {
			p.Logger.Debug("ip info lookup failed", "ip", ip, "error", err)
		}
		return nil
	}
	return info
}

// LeakTest fetches each leak-test endpoint through Tor.
func (p *Prober) LeakTest(ctx context.Context) []LeakResult {
	results := make([]LeakResult, 0, len(p.Options.LeakURLs))
	for _, u := range p.Options.LeakURLs {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		status, _, err := p.get(ctx, p.Tor, u, p.Options.timeout())
		r := LeakResult{URL: u, Status: status, Reachable: err == nil && status == http.StatusOK}
		if err != nil && status == 0 {
			r.Error = err.Error()
		}
		p.observe("leak", r.Reachable, start)
		results = append(results, r)
	}
	return results
}

// CheckConnectivity verifies direct internet access. Failure is fatal for
// the caller and carries apperr.KindNoInternet.
func (p *Prober) CheckConnectivity(ctx context.Context) error {
	start := time.Now()
	_, _, err := p.get(ctx, p.Direct, p.Options.ConnectivityURL, 5*time.Second)
	// Any HTTP answer proves connectivity.
	var se *StatusError
	if errors.As(err, &se) {
		err = nil
	}
	p.observe("connectivity", err == nil, start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.New(apperr.KindNoInternet, "internet connection required but not available", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
