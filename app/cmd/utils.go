package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	coreErrs "github.com/apernet/bequic/core/errors"
	"github.com/apernet/bequic/core/quicio"
)

type configError struct {
	Field string
	Err   error
}

func (e configError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Err)
}

func (e configError) Unwrap() error {
	return e.Err
}

// loadConfig reads the config file if there is one and applies the command
// line overrides. A missing default config file is not an error.
func loadConfig(overrides []string) (*cliConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}
	var config cliConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.applyOverrides(overrides); err != nil {
		return nil, err
	}
	return &config, nil
}

// retryable reports whether an open failure may go away on its own.
func retryable(err error) bool {
	var resolveErr coreErrs.ResolveError
	var openErr coreErrs.OpenError
	return errors.As(err, &resolveErr) || errors.As(err, &openErr)
}

// openWithRetry opens rawURI, retrying resolve and transport failures
// according to b.
func openWithRetry(rawURI string, flags int, config *quicio.Config, b backoff.BackOff) (*quicio.URLContext, error) {
	var c *quicio.URLContext
	op := func() error {
		var err error
		c, err = quicio.Dial(rawURI, flags, config)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		logger.Warn("failed to open, retrying",
			zap.String("uri", rawURI),
			zap.Duration("after", d),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return c, nil
}
