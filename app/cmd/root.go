package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	appDesc    = "a command line client for quic:// and quics:// resources"
	appAuthors = "Aperture Internet Laboratory <https://github.com/apernet>"

	appEnvPrefix = "BEQUIC"
)

var (
	// These values will be injected by the build system
	appVersion = "Unknown"
	appDate    = "Unknown"
	appCommit  = "Unknown"

	appVersionLong = fmt.Sprintf("Version:\t%s\nBuildDate:\t%s\nCommitHash:\t%s", appVersion, appDate, appCommit)
)

var logger = zap.NewNop()

// Flags
var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:     "bequic",
	Short:   appDesc,
	Long:    fmt.Sprintf("%s\n%s\n\n%s", appDesc, appAuthors, appVersionLong),
	Version: appVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initFlags()
	cobra.OnInitialize(initConfig)
}

func initFlags() {
	rootCmd.SetVersionTemplate(appVersionLong + "\n")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "f", "console", "log format (console, json)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/bequic/")
		viper.AddConfigPath("$HOME/.bequic")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix(appEnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if v := os.Getenv(appEnvPrefix + "_LOG_LEVEL"); v != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		logLevel = v
	}
	if v := os.Getenv(appEnvPrefix + "_LOG_FORMAT"); v != "" && !rootCmd.PersistentFlags().Changed("log-format") {
		logFormat = v
	}
}

func initLogger() {
	l, err := newLogger(logLevel, logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = l
	// Library packages log through the global logger.
	zap.ReplaceGlobals(l)
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var c zap.Config
	switch strings.ToLower(format) {
	case "", "console":
		c = zap.NewDevelopmentConfig()
		c.DisableStacktrace = true
	case "json":
		c = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	c.Level = zap.NewAtomicLevelAt(lvl)
	// Stdout is reserved for resource data.
	c.OutputPaths = []string{"stderr"}
	c.ErrorOutputPaths = []string{"stderr"}
	return c.Build()
}
