package quicio

import (
	"strings"

	"github.com/apernet/bequic/core/uri"
)

const defaultWhitelist = uri.SchemePlain + "," + uri.SchemeSecure

// Protocol describes one scheme served by this package, in the shape the
// framework's URL dispatcher registers protocols.
type Protocol struct {
	Name             string
	DefaultWhitelist string
	Network          bool
}

var (
	ProtocolPlain = Protocol{
		Name:             uri.SchemePlain,
		DefaultWhitelist: defaultWhitelist,
		Network:          true,
	}
	ProtocolSecure = Protocol{
		Name:             uri.SchemeSecure,
		DefaultWhitelist: defaultWhitelist,
		Network:          true,
	}

	// Protocols lists both schemes. They share one implementation.
	Protocols = []Protocol{ProtocolPlain, ProtocolSecure}
)

// Allows reports whether the protocol's default whitelist contains name.
func (p Protocol) Allows(name string) bool {
	for _, w := range strings.Split(p.DefaultWhitelist, ",") {
		if strings.EqualFold(strings.TrimSpace(w), name) {
			return true
		}
	}
	return false
}

// New creates an unopened context for this protocol.
func (p Protocol) New(config *Config) (*URLContext, error) {
	return NewURLContext(config)
}

// Lookup finds the protocol for rawURI by its scheme.
func Lookup(rawURI string) (Protocol, bool) {
	i := strings.Index(rawURI, "://")
	if i < 0 {
		return Protocol{}, false
	}
	scheme := rawURI[:i]
	for _, p := range Protocols {
		if strings.EqualFold(p.Name, scheme) {
			return p, true
		}
	}
	return Protocol{}, false
}

// Dial creates a context and opens rawURI with it.
func Dial(rawURI string, flags int, config *Config) (*URLContext, error) {
	c, err := NewURLContext(config)
	if err != nil {
		return nil, err
	}
	if err := c.Open(rawURI, flags); err != nil {
		return nil, err
	}
	return c, nil
}
