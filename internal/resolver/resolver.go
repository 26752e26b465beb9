// Package resolver performs reverse DNS lookups against a configured server.
// The scan engine uses it to name hosts nmap left without a hostname.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultTimeout = 2 * time.Second
	dnsPort        = "53"
)

// PTRResolver looks up PTR records with a single DNS server.
type PTRResolver struct {
	server string
	client *dns.Client
}

// New creates a resolver for server ("host" or "host:port"). A zero timeout
// uses a two second default.
func New(server string, timeout time.Duration) *PTRResolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, dnsPort)
	}
	return &PTRResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// Server returns the server address queries are sent to.
func (r *PTRResolver) Server() string {
	return r.server
}

// LookupAddr returns the first PTR name for addr without the trailing dot.
func (r *PTRResolver) LookupAddr(ctx context.Context, addr string) (string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", fmt.Errorf("ptr query for %s: %w", addr, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("ptr query for %s: %s", addr, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("no ptr record for %s", addr)
}
