// Package verify confirms DNS changes by querying the authoritative server
// directly. FreeIPA hosts its own DNS, so the record added over JSON-RPC
// should be resolvable from the same host moments later.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single DNS exchange.
const DefaultTimeout = 5 * time.Second

// Resolver queries A records against a fixed DNS server.
type Resolver struct {
	server string
	client *dns.Client
	logger *slog.Logger
}

// Option is a functional option for configuring the Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

// New creates a Resolver for the given server. A missing port defaults
// to 53.
func New(server string, opts ...Option) *Resolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	r := &Resolver{
		server: server,
		client: &dns.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// LookupA returns the IPv4 addresses the server answers for fqdn, or an
// empty slice when the name does not exist.
func (r *Resolver) LookupA(ctx context.Context, fqdn string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fqdn), dns.TypeA)
	msg.RecursionDesired = true

	resp, rtt, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("querying %s for %s: %w", r.server, fqdn, err)
	}

	if resp.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("querying %s for %s: server returned %s",
			r.server, fqdn, dns.RcodeToString[resp.Rcode])
	}

	var addrs []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}

	r.logger.Debug("A lookup",
		slog.String("fqdn", fqdn),
		slog.Int("answers", len(addrs)),
		slog.Duration("rtt", rtt),
	)

	return addrs, nil
}

// ExpectA fails unless fqdn resolves to the given address.
func (r *Resolver) ExpectA(ctx context.Context, fqdn, address string) error {
	addrs, err := r.LookupA(ctx, fqdn)
	if err != nil {
		return err
	}

	for _, a := range addrs {
		if a == address {
			return nil
		}
	}

	return fmt.Errorf("%s does not resolve to %s (got %v)", fqdn, address, addrs)
}

// ExpectAbsent fails if fqdn still resolves to any A record.
func (r *Resolver) ExpectAbsent(ctx context.Context, fqdn string) error {
	addrs, err := r.LookupA(ctx, fqdn)
	if err != nil {
		return err
	}

	if len(addrs) > 0 {
		return fmt.Errorf("%s still resolves to %v", fqdn, addrs)
	}

	return nil
}
