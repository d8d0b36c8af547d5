package quicio

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/apernet/bequic/core/errors"
	"github.com/apernet/bequic/core/resolve"
	"github.com/apernet/bequic/core/transport"
	"github.com/apernet/bequic/core/uri"
)

// Flags passed to Open, mirroring the framework's access flags.
const (
	FlagRead      = 1
	FlagWrite     = 2
	FlagReadWrite = FlagRead | FlagWrite
)

type state int

const (
	stateIdle state = iota
	stateOpening
	stateOpen
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpening:
		return "opening"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// sessionHandle is only ever created by a successful open and dropped by Close.
type sessionHandle struct {
	fd int
}

var (
	_ io.ReadWriteSeeker = (*URLContext)(nil)
	_ io.Closer          = (*URLContext)(nil)
)

// URLContext binds one quic:// or quics:// resource to one transport session.
// It is not safe for concurrent use; distinct contexts are independent.
type URLContext struct {
	config *Config
	logger *zap.Logger

	state  state
	flags  int
	url    string
	handle *sessionHandle
}

func NewURLContext(config *Config) (*URLContext, error) {
	if err := config.verifyAndFill(); err != nil {
		return nil, err
	}
	return &URLContext{
		config: config,
		logger: config.Logger,
	}, nil
}

// Open translates rawURI, optionally resolves its host and asks the transport
// for a session. On failure the context stays usable for another Open.
func (c *URLContext) Open(rawURI string, flags int) error {
	switch c.state {
	case stateOpening, stateOpen:
		return errors.ErrAlreadyOpen
	case stateClosed:
		return errors.ErrClosed
	}
	if rawURI == "" {
		return errors.ErrInvalidInput
	}
	installLogCallback(c.config.Transport)

	c.state = stateOpening
	h, url, err := c.open(rawURI)
	if c.config.EventLogger != nil {
		fd := 0
		if h != nil {
			fd = h.fd
		}
		c.config.EventLogger.Open(url, fd, err)
	}
	if err != nil {
		c.state = stateIdle
		return err
	}
	c.handle, c.url, c.flags = h, url, flags
	c.state = stateOpen
	return nil
}

func (c *URLContext) open(rawURI string) (*sessionHandle, string, error) {
	sc := *c.config.Session
	// The session config is shared and may have changed since NewURLContext.
	if err := sc.Validate(); err != nil {
		return nil, "", err
	}
	tr, err := uri.Translate(rawURI)
	if err != nil {
		return nil, "", err
	}
	timeout := sc.TimeoutDuration()
	c.logger.Info("opening session",
		zap.String("url", tr.URL),
		zap.Bool("verify", sc.VerifyCertificate),
		zap.Int("protocolVersion", sc.ProtocolVersion),
		zap.Int("handshakeVersion", sc.HandshakeVersion),
		zap.Int("transportVersion", sc.TransportVersion),
		zap.Bool("localResolve", sc.UseLocalResolve),
		zap.Int("timeout", sc.Timeout))

	var addr resolve.Address
	if sc.UseLocalResolve {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		addr, err = c.config.Resolver.Resolve(ctx, tr.URI.Host, tr.URI.Port)
		if err != nil {
			c.logger.Error("failed to resolve hostname", zap.String("host", tr.URI.Host), zap.Error(err))
			return nil, tr.URL, errors.ResolveError{Host: tr.URI.Host, Err: err}
		}
		c.logger.Info("resolved hostname", zap.String("host", tr.URI.Host), zap.String("addr", addr.String()))
	}

	fd, err := c.config.Transport.Open(transport.OpenRequest{
		URL:               tr.URL,
		IP:                addr.IP,
		Port:              tr.URI.Port,
		VerifyCertificate: sc.VerifyCertificate,
		ProtocolVersion:   sc.ProtocolVersion,
		HandshakeVersion:  sc.HandshakeVersion,
		TransportVersion:  sc.TransportVersion,
		Timeout:           timeout,
	})
	c.logger.Info("transport open returned", zap.String("url", tr.URL), zap.Int("handle", fd), zap.Error(err))
	if err != nil || fd <= 0 {
		if fd > 0 {
			_ = c.config.Transport.Close(fd)
			fd = 0
		}
		return nil, tr.URL, errors.OpenError{URL: tr.URL, Handle: fd, Err: err}
	}
	return &sessionHandle{fd: fd}, tr.URL, nil
}

func (c *URLContext) current() (*sessionHandle, error) {
	if c.state != stateOpen || c.handle == nil {
		return nil, errors.ErrNotOpen
	}
	return c.handle, nil
}

// Read forwards to the transport with the configured timeout. Results,
// including io.EOF, are returned untouched.
func (c *URLContext) Read(p []byte) (int, error) {
	h, err := c.current()
	if err != nil {
		return 0, err
	}
	n, err := c.config.Transport.Read(h.fd, p, c.config.Session.TimeoutDuration())
	if n > 0 && c.config.TrafficLogger != nil {
		c.config.TrafficLogger.Log(h.fd, 0, uint64(n))
	}
	return n, err
}

func (c *URLContext) Write(p []byte) (int, error) {
	h, err := c.current()
	if err != nil {
		return 0, err
	}
	n, err := c.config.Transport.Write(h.fd, p)
	if n > 0 && c.config.TrafficLogger != nil {
		c.config.TrafficLogger.Log(h.fd, uint64(n), 0)
	}
	return n, err
}

// Seek accepts io.SeekStart, io.SeekCurrent, io.SeekEnd and transport.SeekSize.
func (c *URLContext) Seek(offset int64, whence int) (int64, error) {
	h, err := c.current()
	if err != nil {
		return 0, err
	}
	return c.config.Transport.Seek(h.fd, offset, whence)
}

// Size is a shorthand for Seek(0, transport.SeekSize).
func (c *URLContext) Size() (int64, error) {
	return c.Seek(0, transport.SeekSize)
}

// FileHandle returns the raw transport handle.
func (c *URLContext) FileHandle() (int, error) {
	h, err := c.current()
	if err != nil {
		return 0, err
	}
	return h.fd, nil
}

// Close releases the session. A failure reported by the transport is logged
// and otherwise ignored; the context can not be used again afterwards.
func (c *URLContext) Close() error {
	h, err := c.current()
	if err != nil {
		return err
	}
	c.logger.Info("closing session", zap.Int("handle", h.fd))
	err = c.config.Transport.Close(h.fd)
	if err != nil {
		c.logger.Warn("transport close failed", zap.Int("handle", h.fd), zap.Error(err))
	} else {
		c.logger.Debug("transport close returned", zap.Int("handle", h.fd))
	}
	c.handle = nil
	c.state = stateClosed
	if c.config.EventLogger != nil {
		c.config.EventLogger.Close(h.fd, err)
	}
	return nil
}

// URL returns the rewritten URL of the open session.
func (c *URLContext) URL() string {
	return c.url
}

func (c *URLContext) Flags() int {
	return c.flags
}
