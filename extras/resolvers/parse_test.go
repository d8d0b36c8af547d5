package resolvers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apernet/bequic/core/resolve"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		wantAddr string
		wantNet  string
		wantErr  bool
	}{
		{name: "bare ip", s: "8.8.8.8", wantAddr: "8.8.8.8:53", wantNet: ""},
		{name: "udp", s: "udp://1.1.1.1", wantAddr: "1.1.1.1:53", wantNet: ""},
		{name: "udp with port", s: "udp://1.1.1.1:5353", wantAddr: "1.1.1.1:5353", wantNet: ""},
		{name: "tcp", s: "tcp://9.9.9.9", wantAddr: "9.9.9.9:53", wantNet: "tcp"},
		{name: "tls", s: "tls://dns.google", wantAddr: "dns.google:853", wantNet: "tcp-tls"},
		{name: "empty udp", s: "udp://", wantErr: true},
		{name: "empty tcp", s: "tcp://", wantErr: true},
		{name: "empty tls", s: "tls://", wantErr: true},
		{name: "empty quic", s: "quic://", wantErr: true},
		{name: "unknown", s: "gopher://1.1.1.1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.s, Options{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			sr, ok := r.(*standardResolver)
			if assert.True(t, ok) {
				assert.Equal(t, tt.wantAddr, sr.Addr)
				assert.Equal(t, tt.wantNet, sr.Client.Net)
				assert.Equal(t, resolverDefaultTimeout, sr.Client.Timeout)
			}
		})
	}
}

func TestParseTLSServerName(t *testing.T) {
	r, err := Parse("tls://dns.google:8853", Options{})
	assert.NoError(t, err)
	assert.Equal(t, "dns.google", r.(*standardResolver).Client.TLSConfig.ServerName)

	r, err = Parse("tls://8.8.8.8", Options{SNI: "dns.google", Insecure: true})
	assert.NoError(t, err)
	assert.Equal(t, "dns.google", r.(*standardResolver).Client.TLSConfig.ServerName)
	assert.True(t, r.(*standardResolver).Client.TLSConfig.InsecureSkipVerify)
}

func TestParseSystemAndDoH(t *testing.T) {
	for _, s := range []string{"", "system", "SYSTEM"} {
		r, err := Parse(s, Options{})
		assert.NoError(t, err)
		assert.IsType(t, &resolve.SystemResolver{}, r)
	}

	r, err := Parse("https://cloudflare-dns.com/dns-query", Options{})
	assert.NoError(t, err)
	dr, ok := r.(*dohResolver)
	if assert.True(t, ok) {
		assert.Equal(t, "cloudflare-dns.com", dr.Resolver.Host)
	}
}
