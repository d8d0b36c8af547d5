package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	coreErrs "github.com/apernet/bequic/core/errors"
	"github.com/apernet/bequic/core/session"
	"github.com/apernet/bequic/extras/transport/h3"
)

// TestCLIConfig tests the parsing of the config file
func TestCLIConfig(t *testing.T) {
	viper.SetConfigFile("config_test.yaml")
	err := viper.ReadInConfig()
	assert.NoError(t, err)
	var config cliConfig
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"verify_certificate": false,
		"ietf_draft_version": 1,
		"handshake_version":  2,
		"use_local_resolve":  0,
		"timeout":            3000,
	}, config.Options)
	assert.Equal(t, "tls://dns.example.com", config.Resolver.Address)
	assert.Equal(t, 4*time.Second, config.Resolver.Timeout)
	assert.Equal(t, "dns.example.com", config.Resolver.SNI)
	assert.True(t, config.Resolver.Insecure)
	assert.Equal(t, "custom_ca.crt", config.TLS.CA)
	assert.Equal(t, "64KiB", config.ChunkSize)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, config.Retry.Interval)
	assert.Equal(t, "127.0.0.1:9100", config.Prometheus.Listen)
	assert.Equal(t, "127.0.0.1:9200", config.TrafficStats.Listen)
	assert.Equal(t, "hunter2", config.TrafficStats.Secret)
}

func TestCLIConfigSession(t *testing.T) {
	config := cliConfig{Options: map[string]interface{}{
		"verify_certificate": false,
		"ietf_draft_version": 1,
		"handshake_version":  2,
		"use_local_resolve":  0,
		"timeout":            3000,
	}}
	qc, err := config.Config()
	assert.NoError(t, err)
	assert.Equal(t, &session.Config{
		VerifyCertificate: false,
		ProtocolVersion:   1,
		HandshakeVersion:  2,
		TransportVersion:  session.DefaultTransportVersion,
		UseLocalResolve:   false,
		Timeout:           3000,
	}, qc.Session)
	assert.IsType(t, &h3.Transport{}, qc.Transport)
	assert.NotNil(t, qc.Resolver)
	assert.NotNil(t, qc.EventLogger)
	assert.NotNil(t, qc.TrafficLogger)
}

func TestCLIConfigDefaults(t *testing.T) {
	var config cliConfig
	qc, err := config.Config()
	assert.NoError(t, err)
	assert.Equal(t, session.DefaultConfig(), *qc.Session)
	assert.Equal(t, 32*1024, qc.Transport.(*h3.Transport).ChunkSize)
}

func TestCLIConfigOverrides(t *testing.T) {
	config := cliConfig{Options: map[string]interface{}{"timeout": 3000}}
	err := config.applyOverrides([]string{"timeout=500", "Transport_Version = 46"})
	assert.NoError(t, err)
	qc, err := config.Config()
	assert.NoError(t, err)
	assert.Equal(t, 500, qc.Session.Timeout)
	assert.Equal(t, 46, qc.Session.TransportVersion)

	config = cliConfig{Options: map[string]interface{}{"handshake_version": 1}}
	assert.NoError(t, config.applyOverrides([]string{"handshark_version=2"}))
	qc, err = config.Config()
	assert.NoError(t, err)
	assert.Equal(t, 2, qc.Session.HandshakeVersion)

	assert.Error(t, config.applyOverrides([]string{"timeout"}))
	assert.Error(t, config.applyOverrides([]string{"=1"}))
}

func TestCLIConfigChunkSize(t *testing.T) {
	config := cliConfig{ChunkSize: "64KiB"}
	qc, err := config.Config()
	assert.NoError(t, err)
	assert.Equal(t, 64*1024, qc.Transport.(*h3.Transport).ChunkSize)
}

func TestCLIConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   cliConfig
		field string
	}{
		{
			name:  "out of range",
			cfg:   cliConfig{Options: map[string]interface{}{"handshake_version": 3}},
			field: "options.handshake_version",
		},
		{
			name:  "unknown option",
			cfg:   cliConfig{Options: map[string]interface{}{"congestion": "bbr"}},
			field: "options.congestion",
		},
		{
			name:  "not a boolean",
			cfg:   cliConfig{Options: map[string]interface{}{"verify_certificate": "maybe"}},
			field: "options.verify_certificate",
		},
		{
			name:  "option and alias",
			cfg:   cliConfig{Options: map[string]interface{}{"handshake_version": 1, "handshark_version": 2}},
			field: "options.handshark_version",
		},
		{
			name:  "same value twice",
			cfg:   cliConfig{Options: map[string]interface{}{"use_local_resolve": 0, "use_ffmpeg_resolve": 0}},
			field: "options.use_local_resolve",
		},
		{
			name: "bad resolver",
			cfg: func() cliConfig {
				var c cliConfig
				c.Resolver.Address = "gopher://1.1.1.1"
				return c
			}(),
			field: "resolver.address",
		},
		{
			name: "missing CA",
			cfg: func() cliConfig {
				var c cliConfig
				c.TLS.CA = "does_not_exist.crt"
				return c
			}(),
			field: "tls.ca",
		},
		{
			name:  "bad chunk size",
			cfg:   cliConfig{ChunkSize: "lots"},
			field: "chunkSize",
		},
		{
			name:  "huge chunk size",
			cfg:   cliConfig{ChunkSize: "1GiB"},
			field: "chunkSize",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Config()
			var ce configError
			if assert.True(t, errors.As(err, &ce)) {
				assert.Equal(t, tt.field, ce.Field)
			}
		})
	}

	// Session option errors keep the core error type.
	config := cliConfig{Options: map[string]interface{}{"timeout": -2}}
	_, err := config.Config()
	var coreErr coreErrs.ConfigError
	assert.True(t, errors.As(err, &coreErr))
	assert.Equal(t, "timeout", coreErr.Field)
}

func TestCLIConfigBackOff(t *testing.T) {
	var config cliConfig
	b, err := config.BackOff()
	assert.NoError(t, err)
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	config.Retry.MaxAttempts = 3
	config.Retry.Interval = 10 * time.Millisecond
	b, err = config.BackOff()
	assert.NoError(t, err)
	b.Reset()
	assert.NotEqual(t, backoff.Stop, b.NextBackOff())
	assert.NotEqual(t, backoff.Stop, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	config.Retry.MaxAttempts = -1
	_, err = config.BackOff()
	assert.Error(t, err)
}
