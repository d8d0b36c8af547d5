package session

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apernet/bequic/core/errors"
)

const (
	DefaultProtocolVersion  = -1
	DefaultHandshakeVersion = 1
	DefaultTransportVersion = 43
	DefaultTimeout          = -1
)

// Config holds the per-connection tunables handed to the transport at open time.
// Use DefaultConfig to get a usable value; the zero value is not valid.
type Config struct {
	VerifyCertificate bool
	ProtocolVersion   int // IETF QUIC version selector, -1 lets the transport decide
	HandshakeVersion  int
	TransportVersion  int
	UseLocalResolve   bool
	Timeout           int // milliseconds, -1 blocks indefinitely
}

func DefaultConfig() Config {
	return Config{
		VerifyCertificate: true,
		ProtocolVersion:   DefaultProtocolVersion,
		HandshakeVersion:  DefaultHandshakeVersion,
		TransportVersion:  DefaultTransportVersion,
		UseLocalResolve:   true,
		Timeout:           DefaultTimeout,
	}
}

// TimeoutDuration converts Timeout to a duration. Zero means no timeout.
func (c Config) TimeoutDuration() time.Duration {
	if c.Timeout < 0 {
		return 0
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

// Validate checks every numeric field against the ranges in Options.
func (c Config) Validate() error {
	for _, o := range Options {
		if o.Kind != KindInt {
			continue
		}
		if v := o.get(&c); v < o.Min || v > o.Max {
			return errors.ConfigError{Field: o.Name, Reason: o.rangeReason()}
		}
	}
	return nil
}

// Set parses value and assigns it to the option called name.
// Out of range or malformed values are rejected and leave c unchanged.
func (c *Config) Set(name, value string) error {
	o, ok := LookupOption(name)
	if !ok {
		return errors.ConfigError{Field: name, Reason: "unknown option"}
	}
	var v int64
	switch o.Kind {
	case KindBool:
		b, err := parseBool(value)
		if err != nil {
			return errors.ConfigError{Field: o.Name, Reason: "must be a boolean"}
		}
		if b {
			v = 1
		}
	default:
		i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return errors.ConfigError{Field: o.Name, Reason: "must be an integer"}
		}
		v = i
	}
	if v < o.Min || v > o.Max {
		return errors.ConfigError{Field: o.Name, Reason: o.rangeReason()}
	}
	o.set(c, v)
	return nil
}

// Get returns the current value of the named option as a string.
func (c *Config) Get(name string) (string, bool) {
	o, ok := LookupOption(name)
	if !ok {
		return "", false
	}
	v := o.get(c)
	if o.Kind == KindBool {
		return strconv.FormatBool(v != 0), true
	}
	return strconv.FormatInt(v, 10), true
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

type Kind int

const (
	KindBool Kind = iota
	KindInt
)

// Option describes one named, range-limited session setting.
type Option struct {
	Name    string
	Aliases []string
	Help    string
	Kind    Kind
	Default int64
	Min     int64
	Max     int64

	get func(c *Config) int64
	set func(c *Config, v int64)
}

func (o Option) rangeReason() string {
	return "must be between " + strconv.FormatInt(o.Min, 10) + " and " + strconv.FormatInt(o.Max, 10)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Options is the option table exposed to configuration front ends.
var Options = []Option{
	{
		Name: "verify_certificate", Help: "Whether to verify the server certificate.",
		Kind: KindBool, Default: 1, Min: 0, Max: 1,
		get: func(c *Config) int64 { return boolToInt(c.VerifyCertificate) },
		set: func(c *Config, v int64) { c.VerifyCertificate = v != 0 },
	},
	{
		Name: "protocol_version", Aliases: []string{"ietf_draft_version"}, Help: "IETF QUIC version, -1 for automatic.",
		Kind: KindInt, Default: DefaultProtocolVersion, Min: -1, Max: 256,
		get: func(c *Config) int64 { return int64(c.ProtocolVersion) },
		set: func(c *Config, v int64) { c.ProtocolVersion = int(v) },
	},
	{
		Name: "handshake_version", Aliases: []string{"handshark_version"}, Help: "QUIC handshake version.",
		Kind: KindInt, Default: DefaultHandshakeVersion, Min: 1, Max: 2,
		get: func(c *Config) int64 { return int64(c.HandshakeVersion) },
		set: func(c *Config, v int64) { c.HandshakeVersion = int(v) },
	},
	{
		Name: "transport_version", Help: "QUIC transport version.",
		Kind: KindInt, Default: DefaultTransportVersion, Min: 39, Max: 99,
		get: func(c *Config) int64 { return int64(c.TransportVersion) },
		set: func(c *Config, v int64) { c.TransportVersion = int(v) },
	},
	{
		Name: "use_local_resolve", Aliases: []string{"use_ffmpeg_resolve"}, Help: "Resolve the hostname before handing it to the transport.",
		Kind: KindBool, Default: 1, Min: 0, Max: 1,
		get: func(c *Config) int64 { return boolToInt(c.UseLocalResolve) },
		set: func(c *Config, v int64) { c.UseLocalResolve = v != 0 },
	},
	{
		Name: "timeout", Help: "Session establish and read timeout in ms, -1 for none.",
		Kind: KindInt, Default: DefaultTimeout, Min: -1, Max: math.MaxInt32,
		get: func(c *Config) int64 { return int64(c.Timeout) },
		set: func(c *Config, v int64) { c.Timeout = int(v) },
	},
}

// LookupOption finds an option by its name or one of its legacy aliases.
func LookupOption(name string) (Option, bool) {
	for _, o := range Options {
		if o.Name == name {
			return o, true
		}
		for _, a := range o.Aliases {
			if a == name {
				return o, true
			}
		}
	}
	return Option{}, false
}
