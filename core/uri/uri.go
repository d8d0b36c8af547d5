// Package uri recognizes quic:// and quics:// URIs and rewrites them into the
// http:// and https:// URLs understood by the session transport.
package uri

import (
	"strings"

	"github.com/apernet/bequic/core/errors"
)

const (
	SchemePlain  = "quic"
	SchemeSecure = "quics"

	PrefixPlain  = "http://"
	PrefixSecure = "https://"

	DefaultPort = 443

	delimiter = "://"
)

// ParsedURI is the split form of a quic or quics URI.
// Host has IPv6 brackets and userinfo removed. Port is never <= 0.
type ParsedURI struct {
	Scheme string
	Host   string
	Port   int
	Path   string // everything from the first '/', '?' or '#' after the authority
	Secure bool
}

// Prefix returns the URL prefix that replaces the scheme for this URI.
func (u *ParsedURI) Prefix() string {
	if u.Secure {
		return PrefixSecure
	}
	return PrefixPlain
}

// Translation is the result of Translate.
type Translation struct {
	URI *ParsedURI
	URL string
}

// Parse splits raw into its parts. It fails with errors.ErrInvalidInput for an
// empty string and with errors.UnsupportedSchemeError for anything that is not
// quic:// or quics://.
func Parse(raw string) (*ParsedURI, error) {
	if raw == "" {
		return nil, errors.ErrInvalidInput
	}
	i := strings.Index(raw, delimiter)
	if i < 0 {
		return nil, errors.UnsupportedSchemeError{}
	}
	u := &ParsedURI{Scheme: strings.ToLower(raw[:i])}
	switch u.Scheme {
	case SchemePlain:
	case SchemeSecure:
		u.Secure = true
	default:
		return nil, errors.UnsupportedSchemeError{Scheme: raw[:i]}
	}
	rest := raw[i+len(delimiter):]
	authority := rest
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		authority, u.Path = rest[:end], rest[end:]
	}
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		authority = authority[at+1:]
	}
	var portStr string
	u.Host, portStr = splitHostPort(authority)
	u.Port = atoi(portStr)
	if u.Port <= 0 {
		u.Port = DefaultPort
	}
	return u, nil
}

// Rewrite replaces everything up to and including the first "://" in raw
// with http:// or https://. The remainder is kept byte for byte.
func Rewrite(raw string) (string, error) {
	t, err := Translate(raw)
	if err != nil {
		return "", err
	}
	return t.URL, nil
}

// Translate parses raw and rewrites it in one step.
func Translate(raw string) (*Translation, error) {
	u, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	i := strings.Index(raw, delimiter)
	return &Translation{
		URI: u,
		URL: u.Prefix() + raw[i+len(delimiter):],
	}, nil
}

// splitHostPort is lenient: a missing or malformed port yields an empty port
// string rather than an error.
func splitHostPort(authority string) (host, port string) {
	if strings.HasPrefix(authority, "[") {
		if end := strings.IndexByte(authority, ']'); end > 0 {
			host = authority[1:end]
			if tail := authority[end+1:]; strings.HasPrefix(tail, ":") {
				port = tail[1:]
			}
			return host, port
		}
	}
	if col := strings.IndexByte(authority, ':'); col >= 0 {
		return authority[:col], authority[col+1:]
	}
	return authority, ""
}

// atoi parses the leading decimal digits of s, returning 0 when there are none.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<20 {
			// Far outside the port range, stop before overflowing.
			return 0
		}
	}
	return n
}
