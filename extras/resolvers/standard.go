package resolvers

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/apernet/bequic/core/resolve"
)

const (
	resolverDefaultTimeout       = 2 * time.Second
	standardResolverRetryTimes   = 2
	standardResolverMaxCNAMEHops = 8
)

var errCNAMELoop = errors.New("too many CNAME hops")

// standardResolver resolves hostnames using the user-provided DNS server.
// Based on "github.com/miekg/dns", it supports UDP, TCP & DNS-over-TLS (TCP).
type standardResolver struct {
	Addr   string
	Client *dns.Client
}

func NewStandardResolverUDP(addr string, timeout time.Duration) resolve.Resolver {
	return &standardResolver{
		Addr: addDefaultPort(addr),
		Client: &dns.Client{
			Timeout: timeoutOrDefault(timeout),
		},
	}
}

func NewStandardResolverTCP(addr string, timeout time.Duration) resolve.Resolver {
	return &standardResolver{
		Addr: addDefaultPort(addr),
		Client: &dns.Client{
			Net:     "tcp",
			Timeout: timeoutOrDefault(timeout),
		},
	}
}

func NewStandardResolverTLS(addr string, timeout time.Duration, sni string, insecure bool) resolve.Resolver {
	return &standardResolver{
		Addr: addDefaultPortTLS(addr),
		Client: &dns.Client{
			Net:     "tcp-tls",
			Timeout: timeoutOrDefault(timeout),
			TLSConfig: &tls.Config{
				ServerName:         sni,
				InsecureSkipVerify: insecure,
			},
		},
	}
}

// addDefaultPort adds the default DNS port (53) to the address if not present.
func addDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "53")
	}
	return addr
}

// addDefaultPortTLS adds the default DNS-over-TLS port (853) to the address if not present.
func addDefaultPortTLS(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "853")
	}
	return addr
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return resolverDefaultTimeout
	}
	return timeout
}

// skipCNAMEChain skips the CNAME chain and returns the last CNAME target.
// Sometimes the DNS server returns a CNAME chain like this, in one packet:
// domain1.com. CNAME domain2.com.
// domain2.com. CNAME domain3.com.
// In this case, we should avoid sending a query for domain2.com and go
// straight to domain3.com.
func (r *standardResolver) skipCNAMEChain(answers []dns.RR) string {
	var lastCNAME string
	for _, a := range answers {
		if cname, ok := a.(*dns.CNAME); ok {
			if lastCNAME == "" {
				// First CNAME
				lastCNAME = cname.Target
			} else if cname.Hdr.Name == lastCNAME {
				// CNAME chain
				lastCNAME = cname.Target
			} else {
				// CNAME chain ends
				return lastCNAME
			}
		}
	}
	return lastCNAME
}

// lookup resolves a hostname to an address of the given type (A or AAAA).
// If there's no such address, it returns (nil, nil), no error.
func (r *standardResolver) lookup(ctx context.Context, host string, qType uint16) (net.IP, error) {
	return r.lookupHops(ctx, host, qType, standardResolverMaxCNAMEHops)
}

// lookupHops follows at most hops CNAME redirections before giving up.
func (r *standardResolver) lookupHops(ctx context.Context, host string, qType uint16, hops int) (net.IP, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qType)
	m.RecursionDesired = true
	resp, _, err := r.Client.ExchangeContext(ctx, m, r.Addr)
	if err != nil {
		return nil, err
	}
	if len(resp.Answer) == 0 {
		return nil, nil
	}
	// Sometimes the DNS server returns both CNAME and A/AAAA records in one packet.
	hasCNAME := false
	for _, a := range resp.Answer {
		switch aa := a.(type) {
		case *dns.A:
			if qType == dns.TypeA {
				return aa.A.To4(), nil
			}
		case *dns.AAAA:
			if qType == dns.TypeAAAA {
				return aa.AAAA.To16(), nil
			}
		case *dns.CNAME:
			hasCNAME = true
		}
	}
	if hasCNAME {
		if hops <= 0 {
			return nil, errCNAMELoop
		}
		return r.lookupHops(ctx, r.skipCNAMEChain(resp.Answer), qType, hops-1)
	} else {
		// Should not happen
		return nil, nil
	}
}

func (r *standardResolver) lookupRetry(ctx context.Context, host string, qType uint16) (ip net.IP, err error) {
	for i := 0; i < standardResolverRetryTimes; i++ {
		ip, err = r.lookup(ctx, host, qType)
		if err == nil {
			break
		}
	}
	return ip, err
}

func (r *standardResolver) Resolve(ctx context.Context, host string, port int) (resolve.Address, error) {
	if ip := resolve.ParseIP(host); ip != "" {
		// The host is already an IP address, we don't need to resolve it.
		return resolve.Address{IP: ip, Port: port}, nil
	}
	type lookupResult struct {
		ip  net.IP
		err error
	}
	ch4, ch6 := make(chan lookupResult, 1), make(chan lookupResult, 1)
	go func() {
		ip, err := r.lookupRetry(ctx, host, dns.TypeA)
		ch4 <- lookupResult{ip, err}
	}()
	go func() {
		ip, err := r.lookupRetry(ctx, host, dns.TypeAAAA)
		ch6 <- lookupResult{ip, err}
	}()
	result4, result6 := <-ch4, <-ch6
	return pickAddress(result4.ip, result4.err, result6.ip, result6.err, port)
}
