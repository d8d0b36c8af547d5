package resolvers

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apernet/bequic/core/resolve"
)

func TestPickAddress(t *testing.T) {
	errLookup := errors.New("timeout")
	tests := []struct {
		name    string
		ipv4    net.IP
		err4    error
		ipv6    net.IP
		err6    error
		want    resolve.Address
		wantErr error
	}{
		{
			name: "IPv4 only",
			ipv4: net.ParseIP("4.5.6.7").To4(),
			want: resolve.Address{IP: "4.5.6.7", Port: 443},
		},
		{
			name: "IPv6 only",
			ipv6: net.ParseIP("2001:db8::68"),
			want: resolve.Address{IP: "2001:db8::68", Port: 443},
		},
		{
			name: "Both",
			ipv4: net.ParseIP("4.5.6.7").To4(),
			ipv6: net.ParseIP("2001:db8::68"),
			want: resolve.Address{IP: "4.5.6.7", Port: 443},
		},
		{
			name: "IPv6 with IPv4 error",
			err4: errLookup,
			ipv6: net.ParseIP("2001:db8::68"),
			want: resolve.Address{IP: "2001:db8::68", Port: 443},
		},
		{
			name:    "Both failed",
			err4:    errLookup,
			err6:    errors.New("refused"),
			wantErr: errLookup,
		},
		{
			name:    "Nothing",
			wantErr: errNoAddress,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickAddress(tt.ipv4, tt.err4, tt.ipv6, tt.err6, 443)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
