package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/config"
	"grimm.is/tornet/internal/logging"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveProbe(kind string, ok bool, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s:%t", kind, ok))
}

func textServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func newTestProber(t *testing.T, opts Options, torRunning bool) *Prober {
	t.Helper()
	p, err := New(opts, func() bool { return torRunning }, logging.Discard())
	require.NoError(t, err)
	// Plain client standing in for the SOCKS route.
	p.Tor = &http.Client{}
	return p
}

func TestCurrentAddressDirect(t *testing.T) {
	srv := textServer(t, http.StatusOK, "203.0.113.7\n")
	opts := DefaultOptions()
	opts.IPURL = srv.URL

	obs := &recordingObserver{}
	p := newTestProber(t, opts, false)
	p.Observer = obs

	assert.Equal(t, Result{IP: "203.0.113.7"}, p.CurrentAddress(context.Background()))
	assert.Equal(t, []string{"direct:true"}, obs.calls)
}

func TestProbeFailuresYieldEmptyResult(t *testing.T) {
	cases := map[string]string{
		"server error": textServer(t, http.StatusInternalServerError, "oops").URL,
		"not an ip":    textServer(t, http.StatusOK, "<html>captive portal</html>").URL,
		"unreachable":  closedURL(t),
	}
	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.IPURL = url
			p := newTestProber(t, opts, true)

			r := p.CurrentAddress(context.Background())
			assert.False(t, r.Known())
			assert.Equal(t, Result{}, r)
		})
	}
}

func TestAddressWithGeo(t *testing.T) {
	geo := textServer(t, http.StatusOK, `{"ip":"198.51.100.4","country_code":"DE","country_name":"Germany"}`)
	opts := DefaultOptions()
	opts.GeoURL = geo.URL

	p := newTestProber(t, opts, true)
	assert.Equal(t, Result{IP: "198.51.100.4", CountryCode: "DE", CountryName: "Germany"},
		p.AddressWithGeo(context.Background()))
}

func TestAddressWithGeoFallsBack(t *testing.T) {
	opts := DefaultOptions()
	opts.GeoURL = textServer(t, http.StatusTooManyRequests, `{"error":true}`).URL
	opts.IPURL = textServer(t, http.StatusOK, "198.51.100.9").URL

	obs := &recordingObserver{}
	p := newTestProber(t, opts, true)
	p.Observer = obs

	assert.Equal(t, Result{IP: "198.51.100.9"}, p.AddressWithGeo(context.Background()))
	assert.Equal(t, []string{"geo:false", "tor:true"}, obs.calls)
}

func TestAddressWithGeoBothFail(t *testing.T) {
	opts := DefaultOptions()
	opts.GeoURL = closedURL(t)
	opts.IPURL = closedURL(t)

	p := newTestProber(t, opts, true)
	assert.False(t, p.AddressWithGeo(context.Background()).Known())
}

func TestIPInfo(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/json/203.0.113.7" {
			io.WriteString(w, `{"status":"success","country":"Sweden","query":"203.0.113.7"}`)
			return
		}
		io.WriteString(w, `{"status":"fail","message":"reserved range"}`)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.InfoURL = srv.URL + "/json/"
	p := newTestProber(t, opts, false)

	info := p.IPInfo(context.Background(), "203.0.113.7")
	require.NotNil(t, info)
	assert.Equal(t, "/json/203.0.113.7", gotPath)
	assert.Equal(t, "Sweden", info["country"])

	assert.Nil(t, p.IPInfo(context.Background(), "10.0.0.1"))
}

func TestLeakTest(t *testing.T) {
	ok := textServer(t, http.StatusOK, "fine")
	missing := textServer(t, http.StatusNotFound, "gone")
	down := closedURL(t)

	opts := DefaultOptions()
	opts.LeakURLs = []string{ok.URL, missing.URL, down}
	p := newTestProber(t, opts, true)

	results := p.LeakTest(context.Background())
	require.Len(t, results, 3)

	assert.Equal(t, LeakResult{URL: ok.URL, Reachable: true, Status: 200}, results[0])
	assert.Equal(t, LeakResult{URL: missing.URL, Reachable: false, Status: 404}, results[1])
	assert.False(t, results[2].Reachable)
	assert.Zero(t, results[2].Status)
	assert.NotEmpty(t, results[2].Error)
}

func TestCheckConnectivity(t *testing.T) {
	opts := DefaultOptions()
	opts.ConnectivityURL = textServer(t, http.StatusServiceUnavailable, "").URL
	p := newTestProber(t, opts, false)
	assert.NoError(t, p.CheckConnectivity(context.Background()))

	opts.ConnectivityURL = closedURL(t)
	p = newTestProber(t, opts, false)
	err := p.CheckConnectivity(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNoInternet))
	assert.Equal(t, 9, apperr.ExitCode(err))
}

func TestCancelledProbeReturnsEmpty(t *testing.T) {
	srv := textServer(t, http.StatusOK, "203.0.113.7")
	opts := DefaultOptions()
	opts.IPURL = srv.URL
	p := newTestProber(t, opts, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.CurrentAddress(ctx).Known())
	assert.ErrorIs(t, p.CheckConnectivity(ctx), context.Canceled)
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, "127.0.0.1:9050", o.SocksAddr)
	assert.Len(t, o.LeakURLs, 3)

	o.Timeout = 30 * time.Second
	assert.Equal(t, MaxTimeout, o.timeout())
	o.Timeout = 0
	assert.Equal(t, MaxTimeout, o.timeout())

	o = o.WithConfig(config.ProbeConfig{Timeout: 4, SocksAddr: "127.0.0.1:9150", LeakURLs: []string{"https://example.test"}})
	assert.Equal(t, 4*time.Second, o.timeout())
	assert.Equal(t, "127.0.0.1:9150", o.SocksAddr)
	assert.Equal(t, []string{"https://example.test"}, o.LeakURLs)
	assert.Equal(t, "https://api.ipify.org", o.IPURL)
}

// startSOCKS5 runs a minimal no-auth SOCKS5 CONNECT proxy.
func startSOCKS5(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var connects atomic.Int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSOCKS5(c, &connects)
		}
	}()
	return ln.Addr().String(), &connects
}

func serveSOCKS5(c net.Conn, connects *atomic.Int32) {
	defer c.Close()
	buf := make([]byte, 262)

	if _, err := io.ReadFull(c, buf[:2]); err != nil {
		return
	}
	if _, err := io.ReadFull(c, buf[:int(buf[1])]); err != nil {
		return
	}
	c.Write([]byte{5, 0})

	if _, err := io.ReadFull(c, buf[:4]); err != nil {
		return
	}
	var host string
	switch buf[3] {
	case 1:
		io.ReadFull(c, buf[:4])
		host = net.IP(append([]byte(nil), buf[:4]...)).String()
	case 3:
		io.ReadFull(c, buf[:1])
		n := int(buf[0])
		io.ReadFull(c, buf[:n])
		host = string(buf[:n])
	case 4:
		io.ReadFull(c, buf[:16])
		host = net.IP(append([]byte(nil), buf[:16]...)).String()
	default:
		return
	}
	if _, err := io.ReadFull(c, buf[:2]); err != nil {
		return
	}
	port := int(buf[0])<<8 | int(buf[1])

	up, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		c.Write([]byte{5, 5, 0, 1, 0, 0, 0, 0, 0, 0})
		return
	}
	defer up.Close()
	connects.Add(1)
	c.Write([]byte{5, 0, 0, 1, 0, 0, 0, 0, 0, 0})

	go io.Copy(up, c)
	io.Copy(c, up)
}

func TestCurrentAddressThroughSOCKS(t *testing.T) {
	socksAddr, connects := startSOCKS5(t)
	srv := textServer(t, http.StatusOK, "192.0.2.55")

	opts := DefaultOptions()
	opts.SocksAddr = socksAddr
	opts.IPURL = srv.URL

	p, err := New(opts, func() bool { return true }, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, Result{IP: "192.0.2.55"}, p.CurrentAddress(context.Background()))
	assert.Equal(t, int32(1), connects.Load())
}

func TestTorRouteFailsWhenProxyDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	opts := DefaultOptions()
	opts.SocksAddr = addr
	opts.IPURL = textServer(t, http.StatusOK, "192.0.2.55").URL

	p, err := New(opts, func() bool { return true }, logging.Discard())
	require.NoError(t, err)
	assert.False(t, p.CurrentAddress(context.Background()).Known())
}
