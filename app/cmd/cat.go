package cmd

import (
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apernet/bequic/core/quicio"
)

var catCmd = &cobra.Command{
	Use:   "cat uri",
	Short: "Copy a resource to stdout",
	Long:  "Open a quic:// or quics:// resource and copy its content to stdout or a file.",
	Run:   runCat,
}

var (
	catOffset  int64
	catLength  string
	catOutput  string
	catOptions []string
)

func init() {
	catCmd.Flags().Int64Var(&catOffset, "offset", 0, "start reading at this byte offset")
	catCmd.Flags().StringVar(&catLength, "length", "", "stop after this many bytes, e.g. 512KiB or 10MB")
	catCmd.Flags().StringVarP(&catOutput, "output", "o", "", "write to this file instead of stdout")
	catCmd.Flags().StringArrayVarP(&catOptions, "option", "O", nil, "session option as name=value, may be repeated")
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		logger.Fatal("must specify one and only one uri")
	}
	rawURI := args[0]

	config, err := loadConfig(catOptions)
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
	var limit int64 = -1
	if catLength != "" {
		limit, err = units.RAMInBytes(catLength)
		if err != nil || limit < 0 {
			logger.Fatal("invalid length", zap.String("length", catLength), zap.Error(err))
		}
	}

	c, err := openWithRetry(rawURI, quicio.FlagRead, qc, b)
	if err != nil {
		logger.Fatal("failed to open", zap.String("uri", rawURI), zap.Error(err))
	}
	defer c.Close()

	if catOffset > 0 {
		if _, err := c.Seek(catOffset, io.SeekStart); err != nil {
			logger.Fatal("failed to seek", zap.Int64("offset", catOffset), zap.Error(err))
		}
	}

	var out io.Writer = os.Stdout
	if catOutput != "" {
		f, err := os.Create(catOutput)
		if err != nil {
			logger.Fatal("failed to create output file", zap.String("file", catOutput), zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	start := time.Now()
	n, err := copyN(out, c, limit)
	if err != nil {
		logger.Fatal("copy failed", zap.String("copied", units.HumanSize(float64(n))), zap.Error(err))
	}
	logger.Info("copy finished",
		zap.String("url", c.URL()),
		zap.String("copied", units.HumanSize(float64(n))),
		zap.Duration("time", time.Since(start)))
}

// copyN copies up to limit bytes, or everything when limit is negative.
// Reaching the end of the resource early is not an error.
func copyN(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	if limit < 0 {
		return io.Copy(dst, src)
	}
	return io.Copy(dst, io.LimitReader(src, limit))
}
