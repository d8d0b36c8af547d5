// Package resolvers builds the resolvers used for local resolution from a
// single string, e.g. "udp://1.1.1.1", "tls://dns.google" or
// "https://cloudflare-dns.com/dns-query".
package resolvers

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	rdns "github.com/folbricht/routedns"

	"github.com/apernet/bequic/core/resolve"
)

var errInvalidSyntax = errors.New("invalid syntax")

// Options apply to the resolvers that talk to a remote server.
type Options struct {
	Timeout  time.Duration
	SNI      string
	Insecure bool
}

// Parse returns the resolver described by s. An empty string or "system"
// selects the operating system resolver.
func Parse(s string, opts Options) (resolve.Resolver, error) {
	if s == "" || strings.EqualFold(s, "system") {
		return &resolve.SystemResolver{}, nil
	}
	if net.ParseIP(s) != nil {
		// Just an IP address, treat as UDP 53
		s = "udp://" + net.JoinHostPort(s, "53")
	}
	switch {
	case strings.HasPrefix(s, "udp://"):
		addr := strings.TrimPrefix(s, "udp://")
		if addr == "" {
			return nil, errInvalidSyntax
		}
		return NewStandardResolverUDP(addr, opts.Timeout), nil
	case strings.HasPrefix(s, "tcp://"):
		addr := strings.TrimPrefix(s, "tcp://")
		if addr == "" {
			return nil, errInvalidSyntax
		}
		return NewStandardResolverTCP(addr, opts.Timeout), nil
	case strings.HasPrefix(s, "tls://"):
		addr := strings.TrimPrefix(s, "tls://")
		if addr == "" {
			return nil, errInvalidSyntax
		}
		sni := opts.SNI
		if sni == "" {
			sni = hostOf(addr)
		}
		return NewStandardResolverTLS(addr, opts.Timeout, sni, opts.Insecure), nil
	case strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		if err != nil {
			return nil, err
		}
		if u.Host == "" {
			return nil, errInvalidSyntax
		}
		sni := opts.SNI
		if sni == "" {
			sni = u.Hostname()
		}
		return NewDoHResolver(u.Host, opts.Timeout, sni, opts.Insecure), nil
	case strings.HasPrefix(s, "quic://"):
		return newDoQResolver(strings.TrimPrefix(s, "quic://"))
	default:
		return nil, errInvalidSyntax
	}
}

// newDoQResolver wraps a routedns DNS-over-QUIC client in a net.Resolver.
func newDoQResolver(addr string) (resolve.Resolver, error) {
	if addr == "" {
		return nil, errInvalidSyntax
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		// Append the default DNS port
		addr = net.JoinHostPort(addr, "853")
	}
	// Need to set bootstrap address to avoid loopback DNS lookup
	doqIPAddr, err := net.ResolveIPAddr("ip", hostOf(addr))
	if err != nil {
		return nil, err
	}
	client, err := rdns.NewDoQClient("doq", addr, rdns.DoQClientOptions{
		BootstrapAddr: doqIPAddr.String(),
	})
	if err != nil {
		return nil, err
	}
	return &resolve.SystemResolver{Resolver: rdns.NewNetResolver(client)}, nil
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
