package quicio

import (
	"go.uber.org/zap"

	"github.com/apernet/bequic/core/errors"
	"github.com/apernet/bequic/core/resolve"
	"github.com/apernet/bequic/core/session"
	"github.com/apernet/bequic/core/transport"
)

type Config struct {
	Session       *session.Config
	Transport     transport.Transport
	Resolver      resolve.Resolver
	Logger        *zap.Logger
	EventLogger   EventLogger
	TrafficLogger TrafficLogger

	filled bool // whether the fields have been verified and filled
}

// verifyAndFill fills the fields that are not set by the user with default values when possible,
// and returns an error if the user has not set a required field or has set an invalid value.
func (c *Config) verifyAndFill() error {
	if c.filled {
		return nil
	}
	if c.Transport == nil {
		return errors.ConfigError{Field: "Transport", Reason: "must be set"}
	}
	if c.Session == nil {
		sc := session.DefaultConfig()
		c.Session = &sc
	} else if err := c.Session.Validate(); err != nil {
		return err
	}
	if c.Resolver == nil {
		c.Resolver = &resolve.SystemResolver{}
	}
	if c.Logger == nil {
		c.Logger = zap.L()
	}
	c.filled = true
	return nil
}

// EventLogger receives session lifecycle events. Handle is 0 for failed opens.
type EventLogger interface {
	Open(url string, handle int, err error)
	Close(handle int, err error)
}

// TrafficLogger receives the number of bytes moved by each successful read or write.
type TrafficLogger interface {
	Log(handle int, tx, rx uint64)
}
