package cmd

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/go-units"

	"github.com/apernet/bequic/core/quicio"
	"github.com/apernet/bequic/core/session"
	"github.com/apernet/bequic/extras/resolvers"
	"github.com/apernet/bequic/extras/trafficlogger"
	"github.com/apernet/bequic/extras/transport/h3"
)

const (
	defaultRetryInterval = 500 * time.Millisecond
)

type cliConfig struct {
	// Options holds session options by name, legacy names included.
	Options  map[string]interface{} `mapstructure:"options"`
	Resolver struct {
		Address  string        `mapstructure:"address"`
		Timeout  time.Duration `mapstructure:"timeout"`
		SNI      string        `mapstructure:"sni"`
		Insecure bool          `mapstructure:"insecure"`
	} `mapstructure:"resolver"`
	SystemResolver string `mapstructure:"systemResolver"`
	TLS            struct {
		CA string `mapstructure:"ca"`
	} `mapstructure:"tls"`
	ChunkSize string `mapstructure:"chunkSize"`
	Retry     struct {
		MaxAttempts int           `mapstructure:"maxAttempts"`
		Interval    time.Duration `mapstructure:"interval"`
	} `mapstructure:"retry"`
	Prometheus struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"prometheus"`
	TrafficStats struct {
		Listen string `mapstructure:"listen"`
		Secret string `mapstructure:"secret"`
	} `mapstructure:"trafficStats"`
}

// applyOverrides merges name=value pairs from the command line into Options.
func (c *cliConfig) applyOverrides(overrides []string) error {
	for _, o := range overrides {
		name, value, ok := strings.Cut(o, "=")
		if !ok || name == "" {
			return configError{Field: "option", Err: fmt.Errorf("expected name=value, got %q", o)}
		}
		if c.Options == nil {
			c.Options = make(map[string]interface{})
		}
		name = strings.ToLower(strings.TrimSpace(name))
		// An override replaces the option under any of its names.
		if o, ok := session.LookupOption(name); ok {
			for existing := range c.Options {
				if eo, ok := session.LookupOption(existing); ok && eo.Name == o.Name {
					delete(c.Options, existing)
				}
			}
		}
		c.Options[name] = value
	}
	return nil
}

func (c *cliConfig) fillSession(qc *quicio.Config) error {
	sc := session.DefaultConfig()
	names := make([]string, 0, len(c.Options))
	for name := range c.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	seen := make(map[string]string, len(names))
	for _, name := range names {
		if o, ok := session.LookupOption(name); ok {
			if prev, dup := seen[o.Name]; dup {
				return configError{Field: "options." + name, Err: fmt.Errorf("conflicts with %s", prev)}
			}
			seen[o.Name] = name
		}
		if err := sc.Set(name, fmt.Sprint(c.Options[name])); err != nil {
			return configError{Field: "options." + name, Err: err}
		}
	}
	qc.Session = &sc
	return nil
}

func (c *cliConfig) fillSystemResolver(qc *quicio.Config) error {
	if c.SystemResolver == "" {
		return nil
	}
	if err := setSystemResolver(c.SystemResolver); err != nil {
		return configError{Field: "systemResolver", Err: err}
	}
	return nil
}

func (c *cliConfig) fillResolver(qc *quicio.Config) error {
	r, err := resolvers.Parse(c.Resolver.Address, resolvers.Options{
		Timeout:  c.Resolver.Timeout,
		SNI:      c.Resolver.SNI,
		Insecure: c.Resolver.Insecure,
	})
	if err != nil {
		return configError{Field: "resolver.address", Err: err}
	}
	qc.Resolver = r
	return nil
}

func (c *cliConfig) fillTransport(qc *quicio.Config) error {
	tr := h3.NewTransport()
	if c.TLS.CA != "" {
		ca, err := os.ReadFile(c.TLS.CA)
		if err != nil {
			return configError{Field: "tls.ca", Err: err}
		}
		cPool := x509.NewCertPool()
		if !cPool.AppendCertsFromPEM(ca) {
			return configError{Field: "tls.ca", Err: errors.New("failed to parse CA certificate")}
		}
		tr.RootCAs = cPool
	}
	if c.ChunkSize != "" {
		n, err := units.RAMInBytes(c.ChunkSize)
		if err != nil {
			return configError{Field: "chunkSize", Err: err}
		}
		if n <= 0 || n > 16*units.MiB {
			return configError{Field: "chunkSize", Err: errors.New("must be between 1 byte and 16 MiB")}
		}
		tr.ChunkSize = int(n)
	}
	qc.Transport = tr
	return nil
}

func (c *cliConfig) fillLoggers(qc *quicio.Config) error {
	sl := &sessionLogger{}
	if c.Prometheus.Listen != "" {
		sl.Metrics = newSessionMetrics()
		if err := startPrometheus(c.Prometheus.Listen, sl.Metrics); err != nil {
			return configError{Field: "prometheus.listen", Err: err}
		}
	}
	if c.TrafficStats.Listen != "" {
		sl.Stats = trafficlogger.NewTrafficStatsServer(c.TrafficStats.Secret)
		if err := startTrafficStats(c.TrafficStats.Listen, sl.Stats); err != nil {
			return configError{Field: "trafficStats.listen", Err: err}
		}
	}
	qc.Logger = logger
	qc.EventLogger = sl
	qc.TrafficLogger = sl
	return nil
}

// Config validates the fields and returns a ready-to-use adapter config
func (c *cliConfig) Config() (*quicio.Config, error) {
	qc := &quicio.Config{}
	fillers := []func(*quicio.Config) error{
		c.fillSession,
		c.fillSystemResolver,
		c.fillResolver,
		c.fillTransport,
		c.fillLoggers,
	}
	for _, f := range fillers {
		if err := f(qc); err != nil {
			return nil, err
		}
	}
	return qc, nil
}

// BackOff returns the retry policy for opening a session.
func (c *cliConfig) BackOff() (backoff.BackOff, error) {
	if c.Retry.MaxAttempts < 0 {
		return nil, configError{Field: "retry.maxAttempts", Err: errors.New("must not be negative")}
	}
	if c.Retry.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}, nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryInterval
	if c.Retry.Interval > 0 {
		b.InitialInterval = c.Retry.Interval
	}
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(c.Retry.MaxAttempts-1)), nil
}
