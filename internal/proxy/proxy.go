package proxy

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harshul/devmux/internal/ui"
	"golang.org/x/sync/errgroup"
)

// Path prefixes owned by the backend. This contract is shared with the
// dashboard client and must not change: /api carries requests, /ws carries
// realtime sessions. Everything else belongs to the frontend dev server,
// including its own hot-reload websocket.
const (
	apiPrefix = "/api"
	wsPrefix  = "/ws"
)

// dialTimeout bounds the upstream connection attempt for websocket relays.
const dialTimeout = 10 * time.Second

// Target is one proxied upstream, fixed for the process lifetime.
type Target struct {
	Host string
	Port int
}

func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) URL() *url.URL {
	return &url.URL{Scheme: "http", Host: t.Addr()}
}

// Router decides which upstream owns a request path. It is stateless: the
// decision is recomputed per request from the path alone, identically for
// plain and upgrade requests.
type Router struct {
	Backend  Target
	Frontend Target
}

func (r Router) Route(path string) Target {
	if strings.HasPrefix(path, apiPrefix) || strings.HasPrefix(path, wsPrefix) {
		return r.Backend
	}
	return r.Frontend
}

// UpstreamHost maps the public bind host to the host upstream connections
// should dial. A proxy bound to a wildcard must never dial the wildcard
// back at itself; loopback is substituted.
func UpstreamHost(bindHost string) string {
	switch bindHost {
	case "", "0.0.0.0", "::", "[::]":
		return "127.0.0.1"
	}
	return bindHost
}

// Options configures the proxy listener and its two upstreams.
type Options struct {
	Host     string // bind host; empty means all interfaces
	Port     int
	Backend  Target
	Frontend Target
}

// Server is the single listener fronting both services. HTTP requests go
// through httputil reverse proxies; websocket upgrades are relayed as raw
// byte streams.
type Server struct {
	router        Router
	bindAddr      string
	backendProxy  *httputil.ReverseProxy
	frontendProxy *httputil.ReverseProxy
	listener      net.Listener
	srv           *http.Server
}

func New(opts Options) *Server {
	router := Router{Backend: opts.Backend, Frontend: opts.Frontend}
	return &Server{
		router:        router,
		bindAddr:      net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		backendProxy:  newReverseProxy(opts.Backend),
		frontendProxy: newReverseProxy(opts.Frontend),
	}
}

func newReverseProxy(t Target) *httputil.ReverseProxy {
	rp := httputil.NewSingleHostReverseProxy(t.URL())
	rp.ErrorLog = nil
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		ui.Warn(fmt.Sprintf("upstream %s unreachable for %s %s: %v", t.Addr(), r.Method, r.URL.Path, err))
		http.Error(w, fmt.Sprintf("upstream %s is unreachable", t.Addr()), http.StatusBadGateway)
	}
	return rp
}

// Listen binds the proxy port. Split from Serve so callers learn about a
// busy port before any child is running and so tests can bind port 0.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.bindAddr)
	if err != nil {
		return fmt.Errorf("failed to bind proxy listener on %s: %w", s.bindAddr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address after Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bindAddr
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	s.srv = &http.Server{Handler: s}
	return s.srv.Serve(s.listener)
}

// Close stops the listener and severs in-flight connections.
func (s *Server) Close() error {
	if s.srv != nil {
		return s.srv.Close()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isUpgrade(r) {
		s.relayUpgrade(w, r)
		return
	}
	if s.router.Route(r.URL.Path) == s.router.Backend {
		s.backendProxy.ServeHTTP(w, r)
		return
	}
	s.frontendProxy.ServeHTTP(w, r)
}

func isUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range strings.Split(r.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(v), "upgrade") {
			return true
		}
	}
	return false
}

// relayUpgrade forwards a websocket handshake to the routed upstream and
// then shuttles raw bytes both ways. The payload is never parsed: frames
// belong to the endpoints. Closing either side tears down the other.
func (s *Server) relayUpgrade(w http.ResponseWriter, r *http.Request) {
	target := s.router.Route(r.URL.Path)

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "upgrade not supported", http.StatusInternalServerError)
		return
	}

	upstream, err := net.DialTimeout("tcp", target.Addr(), dialTimeout)
	if err != nil {
		ui.Warn(fmt.Sprintf("upstream %s unreachable for upgrade %s: %v", target.Addr(), r.URL.Path, err))
		// No partial handshake left dangling: the client socket is
		// closed outright.
		if conn, _, hjErr := hj.Hijack(); hjErr == nil {
			conn.Close()
		}
		return
	}
	defer upstream.Close()

	clientConn, clientBuf, err := hj.Hijack()
	if err != nil {
		ui.Warn(fmt.Sprintf("hijack failed for %s: %v", r.URL.Path, err))
		return
	}
	defer clientConn.Close()

	// Replay the handshake the client already sent, then relay whatever
	// is still sitting in the hijacked read buffer along with all future
	// bytes.
	if err := r.Write(upstream); err != nil {
		ui.Warn(fmt.Sprintf("failed to forward upgrade to %s: %v", target.Addr(), err))
		return
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		_, err := io.Copy(upstream, clientBuf)
		upstream.Close()
		clientConn.Close()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(clientConn, upstream)
		upstream.Close()
		clientConn.Close()
		return err
	})
	// Copy errors here are ordinary teardown: one side hung up.
	g.Wait()
}
