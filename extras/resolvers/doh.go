package resolvers

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/babolivier/go-doh-client"

	"github.com/apernet/bequic/core/resolve"
)

// dohResolver resolves hostnames using the user-provided DNS-over-HTTPS server.
type dohResolver struct {
	Resolver *doh.Resolver
}

func NewDoHResolver(host string, timeout time.Duration, sni string, insecure bool) resolve.Resolver {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{
		ServerName:         sni,
		InsecureSkipVerify: insecure,
	}
	return &dohResolver{
		Resolver: &doh.Resolver{
			Host:  host,
			Class: doh.IN,
			HTTPClient: &http.Client{
				Transport: tr,
				Timeout:   timeoutOrDefault(timeout),
			},
		},
	}
}

func (r *dohResolver) Resolve(ctx context.Context, host string, port int) (resolve.Address, error) {
	if ip := resolve.ParseIP(host); ip != "" {
		return resolve.Address{IP: ip, Port: port}, nil
	}
	type lookupResult struct {
		ip  net.IP
		err error
	}
	ch4, ch6 := make(chan lookupResult, 1), make(chan lookupResult, 1)
	go func() {
		recs, _, err := r.Resolver.LookupA(host)
		var ip net.IP
		if err == nil && len(recs) > 0 {
			ip = net.ParseIP(recs[0].IP4).To4()
		}
		ch4 <- lookupResult{ip, err}
	}()
	go func() {
		recs, _, err := r.Resolver.LookupAAAA(host)
		var ip net.IP
		if err == nil && len(recs) > 0 {
			ip = net.ParseIP(recs[0].IP6).To16()
		}
		ch6 <- lookupResult{ip, err}
	}()
	var result4, result6 lookupResult
	for i := 0; i < 2; i++ {
		select {
		case result4 = <-ch4:
		case result6 = <-ch6:
		case <-ctx.Done():
			return resolve.Address{}, ctx.Err()
		}
	}
	return pickAddress(result4.ip, result4.err, result6.ip, result6.err, port)
}
