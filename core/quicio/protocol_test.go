package quicio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		uri    string
		want   Protocol
		wantOK bool
	}{
		{uri: "quic://example.com/a", want: ProtocolPlain, wantOK: true},
		{uri: "quics://example.com/a", want: ProtocolSecure, wantOK: true},
		{uri: "QUICS://example.com/a", want: ProtocolSecure, wantOK: true},
		{uri: "https://example.com/a"},
		{uri: "quic:example.com"},
		{uri: ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, ok := Lookup(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtocolWhitelist(t *testing.T) {
	for _, p := range Protocols {
		assert.True(t, p.Network)
		assert.True(t, p.Allows("quic"))
		assert.True(t, p.Allows("quics"))
		assert.False(t, p.Allows("http"))
	}
}

func TestDial(t *testing.T) {
	tr := newMockTransport(t)
	tr.On("Open", openRequest("https://example.com/live.flv", "", 443)).Return(12, nil).Once()

	c, err := Dial("quics://example.com/live.flv", FlagRead, &Config{Session: noResolveSession(), Transport: tr})
	assert.NoError(t, err)
	fd, err := c.FileHandle()
	assert.NoError(t, err)
	assert.Equal(t, 12, fd)

	tr2 := newMockTransport(t)
	_, err = Dial("rtmp://example.com/live", FlagRead, &Config{Session: noResolveSession(), Transport: tr2})
	assert.Error(t, err)
	tr2.AssertNotCalled(t, "Open", mock.Anything)

	p, ok := Lookup("quic://example.com/a")
	assert.True(t, ok)
	c, err = p.New(&Config{Transport: newMockTransport(t)})
	assert.NoError(t, err)
	assert.NotNil(t, c)
}
