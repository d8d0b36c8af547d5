package resolvers

import (
	"errors"
	"net"

	"github.com/apernet/bequic/core/resolve"
)

var errNoAddress = errors.New("no address found")

// pickAddress returns the IPv4 result if there is one, then the IPv6 result.
// Errors only matter when neither lookup produced an address.
func pickAddress(ipv4 net.IP, err4 error, ipv6 net.IP, err6 error, port int) (resolve.Address, error) {
	if ipv4 != nil {
		return resolve.Address{IP: ipv4.String(), Port: port}, nil
	}
	if ipv6 != nil {
		return resolve.Address{IP: ipv6.String(), Port: port}, nil
	}
	if err4 != nil {
		return resolve.Address{}, err4
	}
	if err6 != nil {
		return resolve.Address{}, err6
	}
	return resolve.Address{}, errNoAddress
}
