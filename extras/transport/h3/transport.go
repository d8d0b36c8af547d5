// Package h3 implements the quicio session transport on top of HTTP/3 over
// quic-go. Every session is one HTTP request whose response body is read
// sequentially; seeking issues a new ranged request on the same connection.
package h3

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/apernet/bequic/core/transport"
)

const (
	defaultChunkSize        = 32 * 1024
	defaultSessionCacheSize = 64
)

var (
	ErrInvalidHandle = errors.New("invalid session handle")
	ErrReadOnly      = errors.New("session is read-only")
	ErrUnknownSize   = errors.New("resource size is unknown")
)

var _ transport.Transport = (*Transport)(nil)

// Transport keeps a table of open sessions keyed by handle. It is safe for
// concurrent use across handles.
type Transport struct {
	// RootCAs overrides the system pool when certificates are verified.
	RootCAs *x509.CertPool
	// QUICConfig is cloned for every session, nil uses quic-go defaults.
	QUICConfig *quic.Config
	// ChunkSize is the size of each read from a response body.
	ChunkSize int

	nextHandle   int32
	sessions     cmap.ConcurrentMap[int, *session]
	sessionCache tls.ClientSessionCache
	logCallback  atomic.Value // transport.LogCallback
}

func NewTransport() *Transport {
	return &Transport{
		ChunkSize: defaultChunkSize,
		sessions: cmap.NewWithCustomShardingFunction[int, *session](func(key int) uint32 {
			return uint32(key)
		}),
		sessionCache: tls.NewLRUClientSessionCache(defaultSessionCacheSize),
	}
}

func (t *Transport) SetLogCallback(cb transport.LogCallback) {
	if cb != nil {
		t.logCallback.Store(cb)
	}
}

func (t *Transport) logf(severity, format string, args ...interface{}) {
	cb, _ := t.logCallback.Load().(transport.LogCallback)
	if cb == nil {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	cb(severity, filepath.Base(file), line, fmt.Sprintf(format, args...))
}

// Open performs the handshake and sends the request. The returned handle is
// only valid once the response headers have arrived with a 200 or 206 status.
func (t *Transport) Open(req transport.OpenRequest) (int, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return -1, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return -1, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	versions, err := quicVersions(req.ProtocolVersion)
	if err != nil {
		return -1, err
	}
	// QUIC always runs over TLS, the http3 round tripper only takes https.
	reqURL := *u
	reqURL.Scheme = "https"
	s := &session{
		t:      t,
		req:    req,
		reqURL: &reqURL,
		rt:     t.roundTripper(req, u.Hostname(), versions),
		size:   -1,
	}
	t.logf(transport.SeverityInfo, "opening %s (transport version %d, handshake version %d)",
		req.URL, req.TransportVersion, req.HandshakeVersion)
	if err := s.request(0); err != nil {
		_ = s.rt.Close()
		t.logf(transport.SeverityError, "open %s failed: %v", req.URL, err)
		return -1, err
	}
	fd := t.register(s)
	t.logf(transport.SeverityInfo, "session %d opened, size %d", fd, s.size)
	return fd, nil
}

// register stores s under a fresh positive handle. Handles wrap around
// after math.MaxInt32 and skip the ones still in use.
func (t *Transport) register(s *session) int {
	for {
		old := atomic.LoadInt32(&t.nextHandle)
		next := old + 1
		if next <= 0 {
			next = 1
		}
		if !atomic.CompareAndSwapInt32(&t.nextHandle, old, next) {
			continue
		}
		if t.sessions.SetIfAbsent(int(next), s) {
			return int(next)
		}
	}
}

func (t *Transport) roundTripper(req transport.OpenRequest, serverName string, versions []quic.VersionNumber) *http3.RoundTripper {
	tlsConfig := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: !req.VerifyCertificate,
		RootCAs:            t.RootCAs,
	}
	if req.HandshakeVersion >= 2 {
		// Resumed sessions can send the request in 0-RTT.
		tlsConfig.ClientSessionCache = t.sessionCache
	}
	quicConfig := &quic.Config{}
	if t.QUICConfig != nil {
		quicConfig = t.QUICConfig.Clone()
	}
	if versions != nil {
		quicConfig.Versions = versions
	}
	if req.Timeout > 0 {
		quicConfig.HandshakeIdleTimeout = req.Timeout
	}
	return &http3.RoundTripper{
		TLSClientConfig: tlsConfig,
		QuicConfig:      quicConfig,
		Dial: func(ctx context.Context, addr string, tlsCfg *tls.Config, cfg *quic.Config) (quic.EarlyConnection, error) {
			return quic.DialAddrEarlyContext(ctx, dialAddr(addr, req.IP, req.Port), tlsCfg, cfg)
		},
	}
}

// dialAddr swaps in the pre-resolved IP and the requested port, when given.
func dialAddr(addr, ip string, port int) string {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip != "" {
		host = ip
	}
	if port > 0 {
		p = strconv.Itoa(port)
	}
	return net.JoinHostPort(host, p)
}

func quicVersions(v int) ([]quic.VersionNumber, error) {
	switch v {
	case -1:
		return nil, nil
	case 1:
		return []quic.VersionNumber{quic.Version1}, nil
	case 2:
		return []quic.VersionNumber{quic.Version2}, nil
	case 29:
		return []quic.VersionNumber{quic.VersionDraft29}, nil
	default:
		return nil, fmt.Errorf("unsupported QUIC version %d", v)
	}
}

func (t *Transport) session(handle int) (*session, error) {
	s, ok := t.sessions.Get(handle)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// Read returns os.ErrDeadlineExceeded if no data arrives within timeout.
// The session stays usable after a timeout.
func (t *Transport) Read(handle int, p []byte, timeout time.Duration) (int, error) {
	s, err := t.session(handle)
	if err != nil {
		return 0, err
	}
	return s.read(p, timeout)
}

func (t *Transport) Write(handle int, p []byte) (int, error) {
	if _, err := t.session(handle); err != nil {
		return 0, err
	}
	return 0, ErrReadOnly
}

func (t *Transport) Seek(handle int, offset int64, whence int) (int64, error) {
	s, err := t.session(handle)
	if err != nil {
		return -1, err
	}
	return s.seek(offset, whence)
}

func (t *Transport) Close(handle int) error {
	s, ok := t.sessions.Pop(handle)
	if !ok {
		return ErrInvalidHandle
	}
	err := s.close()
	t.logf(transport.SeverityInfo, "session %d closed", handle)
	return err
}

// Sessions returns the number of open sessions.
func (t *Transport) Sessions() int {
	return t.sessions.Count()
}
