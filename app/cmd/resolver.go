package cmd

import (
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"strings"

	rdns "github.com/folbricht/routedns"
)

var errInvalidSyntax = errors.New("invalid syntax")

// setSystemResolver replaces net.DefaultResolver with a caching routedns
// client. It affects every lookup in the process, including the "system"
// session resolver and the DoH/DoT bootstrap of the local resolvers.
func setSystemResolver(dns string) error {
	r, err := newRouteDNSClient(dns)
	if err != nil {
		return err
	}
	cache := rdns.NewCache("cache", r, rdns.CacheOptions{})
	net.DefaultResolver = rdns.NewNetResolver(cache)
	return nil
}

func newRouteDNSClient(dns string) (rdns.Resolver, error) {
	if net.ParseIP(dns) != nil {
		// Just an IP address, treat as UDP 53
		dns = "udp://" + net.JoinHostPort(dns, "53")
	}
	scheme, addr, ok := strings.Cut(dns, "://")
	if !ok || addr == "" {
		return nil, errInvalidSyntax
	}
	switch strings.ToLower(scheme) {
	case "udp", "tcp":
		return rdns.NewDNSClient("dns-"+scheme, withDefaultPort(addr, "53"), scheme, rdns.DNSClientOptions{})
	case "https":
		dohURL, err := url.Parse(dns)
		if err != nil {
			return nil, err
		}
		bootstrap, err := bootstrapAddr(dohURL.Hostname())
		if err != nil {
			return nil, err
		}
		return rdns.NewDoHClient("doh", dns, rdns.DoHClientOptions{
			BootstrapAddr: bootstrap,
		})
	case "tls":
		addr = withDefaultPort(addr, "853")
		host, _, _ := net.SplitHostPort(addr)
		bootstrap, err := bootstrapAddr(host)
		if err != nil {
			return nil, err
		}
		return rdns.NewDoTClient("dot", addr, rdns.DoTClientOptions{
			BootstrapAddr: bootstrap,
			TLSConfig:     &tls.Config{ServerName: host},
		})
	case "quic":
		addr = withDefaultPort(addr, "853")
		host, _, _ := net.SplitHostPort(addr)
		bootstrap, err := bootstrapAddr(host)
		if err != nil {
			return nil, err
		}
		return rdns.NewDoQClient("doq", addr, rdns.DoQClientOptions{
			BootstrapAddr: bootstrap,
		})
	default:
		return nil, errInvalidSyntax
	}
}

func withDefaultPort(addr, port string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, port)
	}
	return addr
}

// bootstrapAddr resolves the DNS server itself up front so the client never
// has to look up its own hostname through itself.
func bootstrapAddr(host string) (string, error) {
	ipAddr, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return "", err
	}
	return ipAddr.String(), nil
}
