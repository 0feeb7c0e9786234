package dns

import (
	"context"
	"fmt"
	"sync"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/miekg/dns"
)

const (
	// DefaultListenAddr keeps the discovery server off the privileged port.
	DefaultListenAddr = "127.0.0.1:5353"

	// DefaultDomain is the search domain for slot discovery names.
	DefaultDomain = "hueshift"
)

// Server answers slot discovery queries over UDP. It is authoritative
// for its domain only and returns NXDOMAIN for everything else; it
// never forwards to upstream resolvers.
type Server struct {
	resolver   *Resolver
	dnsServer  *dns.Server
	listenAddr string
	mu         sync.RWMutex
	running    bool
}

// Config holds DNS server configuration.
type Config struct {
	ListenAddr string
	Domain     string
}

// NewServer creates a discovery DNS server backed by the store.
func NewServer(store storage.Store, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.Domain == "" {
		config.Domain = DefaultDomain
	}

	return &Server{
		resolver:   NewResolver(store, config.Domain),
		listenAddr: config.ListenAddr,
	}
}

// Start begins serving queries. It returns once the listener is up.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("dns server already running")
	}
	s.running = true
	s.mu.Unlock()

	log.WithComponent("dns").Info().
		Str("address", s.listenAddr).
		Msg("starting discovery DNS server")

	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleQuery)

	s.dnsServer = &dns.Server{
		Addr:    s.listenAddr,
		Net:     "udp",
		Handler: mux,
	}

	started := make(chan struct{})
	s.dnsServer.NotifyStartedFunc = func() { close(started) }

	errCh := make(chan error, 1)
	go func() {
		if err := s.dnsServer.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return s.Stop()
	case <-started:
		return nil
	}
}

// Stop shuts the server down. Safe to call when not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.dnsServer != nil {
		if err := s.dnsServer.Shutdown(); err != nil {
			log.WithComponent("dns").Error().Err(err).Msg("error stopping DNS server")
			return err
		}
	}
	s.running = false

	log.WithComponent("dns").Info().Msg("discovery DNS server stopped")
	return nil
}

// IsRunning reports whether the server is serving queries.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) handleQuery(w dns.ResponseWriter, r *dns.Msg) {
	msg := &dns.Msg{}
	msg.SetReply(r)
	msg.Authoritative = true

	for _, q := range r.Question {
		log.WithComponent("dns").Debug().
			Str("query", q.Name).
			Uint16("type", q.Qtype).
			Msg("query received")

		answers, err := s.resolver.Resolve(q.Name, q.Qtype)
		if err != nil {
			log.WithComponent("dns").Debug().
				Err(err).
				Str("query", q.Name).
				Msg("query not resolvable")
			msg.Rcode = dns.RcodeNameError
			break
		}
		msg.Answer = append(msg.Answer, answers...)
	}

	if err := w.WriteMsg(msg); err != nil {
		log.WithComponent("dns").Error().Err(err).Msg("failed to write DNS response")
	}
}
