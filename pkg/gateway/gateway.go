package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
)

// target is the live upstream for one application.
type target struct {
	slot     types.SlotID
	endpoint string
	proxy    *httputil.ReverseProxy
}

// Proxy is a local HTTP reverse proxy that routes each application's
// traffic to exactly one slot. It implements the traffic backend
// contract used by the switcher, so a target swap is a single map
// write under the lock and in-flight requests finish against the
// upstream they started with.
type Proxy struct {
	store  storage.Store
	addr   string
	server *http.Server

	mu      sync.RWMutex
	targets map[string]*target
}

// NewProxy creates a gateway proxy listening on addr.
func NewProxy(store storage.Store, addr string) *Proxy {
	return &Proxy{
		store:   store,
		addr:    addr,
		targets: make(map[string]*target),
	}
}

// SetTarget points app's traffic at the given slot endpoint. Safe to
// call while the proxy is serving.
func (p *Proxy) SetTarget(ctx context.Context, app string, slot types.SlotID, endpoint string) error {
	u, err := url.Parse(fmt.Sprintf("http://%s", endpoint))
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	rp := httputil.NewSingleHostReverseProxy(u)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		req.Header.Set("X-Forwarded-For", req.RemoteAddr)
		req.Header.Set("X-Forwarded-Proto", "http")
		req.Header.Set("X-HueShift-Slot", string(slot))
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error(fmt.Sprintf("Proxy error for %s (%s): %v", app, endpoint, err))
		http.Error(w, "Bad gateway", http.StatusBadGateway)
	}

	p.mu.Lock()
	p.targets[app] = &target{slot: slot, endpoint: endpoint, proxy: rp}
	p.mu.Unlock()

	log.WithApp(app).Debug().
		Str("slot", string(slot)).
		Str("endpoint", endpoint).
		Msg("gateway target updated")
	return nil
}

// Restore realigns app's target with the persisted traffic route.
// Called at startup so a restart does not silently move traffic.
func (p *Proxy) Restore(ctx context.Context, app string) error {
	rt, err := p.store.GetRoute(app)
	if err != nil {
		return fmt.Errorf("load route for %s: %w", app, err)
	}
	return p.SetTarget(ctx, app, rt.Slot, rt.Endpoint)
}

// Target reports the slot currently receiving app's traffic.
func (p *Proxy) Target(app string) (types.SlotID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.targets[app]
	if !ok {
		return "", false
	}
	return t.slot, true
}

// Handler returns the proxy's request handler, exported so tests can
// exercise routing without binding a port.
func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(p.handleRequest)
}

// Start serves traffic until ctx is cancelled, then shuts down
// gracefully.
func (p *Proxy) Start(ctx context.Context) error {
	p.server = &http.Server{
		Addr:         p.addr,
		Handler:      http.HandlerFunc(p.handleRequest),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.addr, err)
	}

	log.Info(fmt.Sprintf("Gateway proxy listening on %s", p.addr))

	go func() {
		if err := p.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error(fmt.Sprintf("Gateway server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gateway proxy")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.server.Shutdown(shutdownCtx)
}

// handleRequest resolves the application for the request and proxies
// it to that application's live slot.
func (p *Proxy) handleRequest(w http.ResponseWriter, r *http.Request) {
	t := p.resolve(r)
	if t == nil {
		log.Warn(fmt.Sprintf("No target for %s%s", r.Host, r.URL.Path))
		http.Error(w, "Application not found", http.StatusNotFound)
		return
	}
	t.proxy.ServeHTTP(w, r)
}

// resolve picks the target for a request. Applications are matched on
// the first label of the Host header; when only one application is
// registered all traffic goes to it.
func (p *Proxy) resolve(r *http.Request) *target {
	p.mu.RLock()
	defer p.mu.RUnlock()

	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}
	for app, t := range p.targets {
		if host == app || len(host) > len(app) && host[:len(app)] == app && host[len(app)] == '.' {
			return t
		}
	}
	if len(p.targets) == 1 {
		for _, t := range p.targets {
			return t
		}
	}
	return nil
}
