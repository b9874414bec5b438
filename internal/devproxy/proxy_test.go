package devproxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/zqadmin/ojadmin/config"
	"github.com/zqadmin/ojadmin/pkg/logger"
)

type seenRequest struct {
	Path          string
	RawQuery      string
	Host          string
	ForwardedFor  string
	ForwardedHost string
	Body          string
}

func newBackend(t *testing.T) (*httptest.Server, chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "echo") {
			serveEcho(w)
			return
		}
		body, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Host:          r.Host,
			ForwardedFor:  r.Header.Get("X-Forwarded-For"),
			ForwardedHost: r.Header.Get("X-Forwarded-Host"),
			Body:          string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(backend.Close)
	return backend, seen
}

// serveEcho switches to a line echo protocol on the raw connection.
func serveEcho(w http.ResponseWriter) {
	conn, brw, err := w.(http.Hijacker).Hijack()
	if err != nil {
		return
	}
	defer conn.Close()
	_, _ = brw.WriteString("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: echo\r\n\r\n")
	_ = brw.Flush()
	line, err := brw.ReadString('\n')
	if err != nil {
		return
	}
	_, _ = conn.Write([]byte("echo: " + line))
}

func newProxyServer(t *testing.T, target string) *httptest.Server {
	t.Helper()
	p, err := New(config.DevProxyConfig{Prefix: "/basic-api", Target: target}, logger.Nop())
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}
	srv := httptest.NewServer(Handler(p, []string{"http://localhost:5173"}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProxyStripsPrefix(t *testing.T) {
	backend, seen := newBackend(t)
	proxy := newProxyServer(t, backend.URL)

	resp, err := http.Post(proxy.URL+"/basic-api/api/problem/?page=1", "application/json", strings.NewReader(`{"title":"A+B"}`))
	if err != nil {
		t.Fatalf("request through proxy: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	got := <-seen
	if got.Path != "/api/problem/" {
		t.Fatalf("prefix not stripped: %q", got.Path)
	}
	if got.RawQuery != "page=1" {
		t.Fatalf("query lost: %q", got.RawQuery)
	}
	if got.Body != `{"title":"A+B"}` {
		t.Fatalf("body not forwarded: %q", got.Body)
	}

	backendURL, _ := url.Parse(backend.URL)
	if got.Host != backendURL.Host {
		t.Fatalf("host not rewritten to target: %q", got.Host)
	}
	proxyURL, _ := url.Parse(proxy.URL)
	if got.ForwardedHost != proxyURL.Host {
		t.Fatalf("unexpected forwarded host: %q", got.ForwardedHost)
	}
	if got.ForwardedFor == "" {
		t.Fatalf("missing X-Forwarded-For")
	}
}

func TestProxyPrefixRoot(t *testing.T) {
	backend, seen := newBackend(t)
	proxy := newProxyServer(t, backend.URL)

	resp, err := http.Get(proxy.URL + "/basic-api")
	if err != nil {
		t.Fatalf("request through proxy: %v", err)
	}
	resp.Body.Close()

	if got := <-seen; got.Path != "/" {
		t.Fatalf("unexpected upstream path: %q", got.Path)
	}
}

func TestProxyRejectsOtherPaths(t *testing.T) {
	backend, seen := newBackend(t)
	proxy := newProxyServer(t, backend.URL)

	for _, path := range []string{"/api/problem/", "/basic-apix/api", "/"} {
		resp, err := http.Get(proxy.URL + path)
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
	select {
	case got := <-seen:
		t.Fatalf("unexpected upstream request: %+v", got)
	default:
	}
}

func TestProxyBadGateway(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	target := backend.URL
	backend.Close()

	proxy := newProxyServer(t, target)
	resp, err := http.Get(proxy.URL + "/basic-api/api/problem/")
	if err != nil {
		t.Fatalf("request through proxy: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestProxyUpgradePassthrough(t *testing.T) {
	backend, _ := newBackend(t)
	proxy := newProxyServer(t, backend.URL)

	proxyURL, _ := url.Parse(proxy.URL)
	conn, err := net.DialTimeout("tcp", proxyURL.Host, time.Second)
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	fmt.Fprintf(conn, "GET /basic-api/ws HTTP/1.1\r\nHost: %s\r\nConnection: Upgrade\r\nUpgrade: echo\r\n\r\n", proxyURL.Host)

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read upgrade response: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if line != "echo: ping\n" {
		t.Fatalf("unexpected echo: %q", line)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cases := []config.DevProxyConfig{
		{Prefix: "", Target: "http://127.0.0.1:8000"},
		{Prefix: "/", Target: "http://127.0.0.1:8000"},
		{Prefix: "/basic-api", Target: "127.0.0.1:8000"},
		{Prefix: "/basic-api", Target: "ws://127.0.0.1:8000"},
	}
	for _, cfg := range cases {
		if _, err := New(cfg, nil); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}

	p, err := New(config.DevProxyConfig{Prefix: "basic-api/", Target: "http://127.0.0.1:8000"}, nil)
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}
	if p.Prefix() != "/basic-api" {
		t.Fatalf("prefix not normalized: %q", p.Prefix())
	}
	if p.Target().Host != "127.0.0.1:8000" {
		t.Fatalf("unexpected target: %v", p.Target())
	}
}
