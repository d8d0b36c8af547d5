package cmd

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apernet/bequic/core/quicio"
)

var probeCmd = &cobra.Command{
	Use:   "probe uri",
	Short: "Probe a resource",
	Long:  "Open a quic:// or quics:// resource, report its size and close it again. Can be used as a simple connectivity test.",
	Run:   runProbe,
}

var probeOptions []string

func init() {
	probeCmd.Flags().StringArrayVarP(&probeOptions, "option", "O", nil, "session option as name=value, may be repeated")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		logger.Fatal("must specify one and only one uri")
	}
	rawURI := args[0]
	if _, ok := quicio.Lookup(rawURI); !ok {
		logger.Fatal("not a quic:// or quics:// uri", zap.String("uri", rawURI))
	}

	config, err := loadConfig(probeOptions)
	if err != nil {
		logger.Fatal("failed to read config", zap.Error(err))
	}
	qc, err := config.Config()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	b, err := config.BackOff()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	c, err := openWithRetry(rawURI, quicio.FlagRead, qc, b)
	if err != nil {
		logger.Fatal("failed to open", zap.String("uri", rawURI), zap.Error(err))
	}
	defer c.Close()

	fd, _ := c.FileHandle()
	size, err := c.Size()
	if err != nil {
		logger.Warn("size unknown", zap.String("url", c.URL()), zap.Error(err))
		fmt.Printf("%s\tunknown\n", c.URL())
		return
	}
	logger.Info("probe succeeded",
		zap.String("url", c.URL()),
		zap.Int("handle", fd),
		zap.String("size", units.HumanSize(float64(size))))
	fmt.Printf("%s\t%d\n", c.URL(), size)
}
