package dns

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
	"github.com/miekg/dns"
)

// recordTTL is deliberately short: the answer for <app>.<domain>
// changes on every traffic switch.
const recordTTL = 5

// Resolver answers slot discovery queries from persisted routes and slots.
type Resolver struct {
	store  storage.Store
	domain string
}

// NewResolver creates a resolver serving names under the given domain.
func NewResolver(store storage.Store, domain string) *Resolver {
	return &Resolver{
		store:  store,
		domain: strings.Trim(strings.ToLower(domain), "."),
	}
}

// Resolve answers a query for an application or slot name.
// It returns an error when the name falls outside the discovery domain
// or names an unknown application or slot.
func (r *Resolver) Resolve(queryName string, qtype uint16) ([]dns.RR, error) {
	name := strings.TrimSuffix(strings.ToLower(queryName), ".")

	suffix := "." + r.domain
	if !strings.HasSuffix(name, suffix) {
		return nil, fmt.Errorf("name outside discovery domain: %s", name)
	}

	labels := strings.Split(strings.TrimSuffix(name, suffix), ".")
	switch len(labels) {
	case 1:
		return r.resolveActive(queryName, labels[0], qtype)
	case 2:
		return r.resolveSlot(queryName, labels[1], types.SlotID(labels[0]), qtype)
	default:
		return nil, fmt.Errorf("unresolvable name: %s", name)
	}
}

// resolveActive answers <app>.<domain> with the endpoint currently
// receiving traffic. The persisted route is authoritative; before the
// first switch the active slot record is used instead.
func (r *Resolver) resolveActive(fqdn, app string, qtype uint16) ([]dns.RR, error) {
	if route, err := r.store.GetRoute(app); err == nil && route.Endpoint != "" {
		return records(fqdn, route.Endpoint, qtype)
	}

	slots, err := r.store.ListSlots(app)
	if err != nil {
		return nil, fmt.Errorf("unknown application: %s", app)
	}
	for _, slot := range slots {
		if slot.Active() {
			return records(fqdn, slot.Endpoint, qtype)
		}
	}
	return nil, fmt.Errorf("no active slot for application: %s", app)
}

// resolveSlot answers blue.<app>.<domain> / green.<app>.<domain> with
// that slot's endpoint regardless of which slot holds traffic.
func (r *Resolver) resolveSlot(fqdn, app string, id types.SlotID, qtype uint16) ([]dns.RR, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("unknown slot: %s", id)
	}
	slot, err := r.store.GetSlot(app, id)
	if err != nil {
		return nil, fmt.Errorf("slot %s not found for application %s", id, app)
	}
	if slot.Endpoint == "" {
		return nil, fmt.Errorf("slot %s of %s has no endpoint", id, app)
	}

	log.WithComponent("dns").Debug().
		Str("app", app).
		Str("slot", string(id)).
		Str("endpoint", slot.Endpoint).
		Msg("resolved slot endpoint")

	return records(fqdn, slot.Endpoint, qtype)
}

// records builds the answer set for a host:port endpoint.
// A queries need a numeric host; SRV queries work for any host.
func records(fqdn, endpoint string, qtype uint16) ([]dns.RR, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		host = endpoint
		portStr = "0"
	}

	switch qtype {
	case dns.TypeA:
		ip := net.ParseIP(host)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("endpoint host is not an IPv4 address: %s", host)
		}
		return []dns.RR{&dns.A{
			Hdr: dns.RR_Header{
				Name:   dns.Fqdn(fqdn),
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    recordTTL,
			},
			A: ip.To4(),
		}}, nil

	case dns.TypeSRV:
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("endpoint has no usable port: %s", endpoint)
		}
		return []dns.RR{&dns.SRV{
			Hdr: dns.RR_Header{
				Name:   dns.Fqdn(fqdn),
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    recordTTL,
			},
			Priority: 0,
			Weight:   0,
			Port:     uint16(port),
			Target:   dns.Fqdn(host),
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported query type: %d", qtype)
	}
}
