package resolve

import (
	"context"
	"errors"
	"net"
	"strconv"
)

var errNoAddress = errors.New("no address found")

// Address is a resolved endpoint. IP is in presentation form (dotted IPv4 or
// textual IPv6 without brackets).
type Address struct {
	IP   string
	Port int
}

func (a Address) IsZero() bool {
	return a.IP == ""
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// Resolver turns a hostname into the address the session should connect to.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) (Address, error)
}

// SystemResolver resolves hostnames with a net.Resolver and returns the first
// address it gets back, regardless of family.
type SystemResolver struct {
	// Resolver defaults to net.DefaultResolver when nil.
	Resolver *net.Resolver
}

func (r *SystemResolver) Resolve(ctx context.Context, host string, port int) (Address, error) {
	if ip := ParseIP(host); ip != "" {
		return Address{IP: ip, Port: port}, nil
	}
	if host == "" {
		return Address{}, errNoAddress
	}
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return Address{}, err
	}
	if len(addrs) == 0 {
		return Address{}, errNoAddress
	}
	return Address{IP: addrs[0].IP.String(), Port: port}, nil
}

// ParseIP returns host in presentation form if it is an IP literal,
// or an empty string otherwise.
func ParseIP(host string) string {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}

// Func adapts a plain function to the Resolver interface.
type Func func(ctx context.Context, host string, port int) (Address, error)

func (f Func) Resolve(ctx context.Context, host string, port int) (Address, error) {
	return f(ctx, host, port)
}
