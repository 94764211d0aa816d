// Package main implements timelinectl, the operator CLI for the timeline service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/officesync/timeline/internal/config"
	"github.com/officesync/timeline/internal/container"
	"github.com/officesync/timeline/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "timelinectl",
		Short:         "Operate the staff timeline service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr at debug level")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newMaterializeCmd(opts),
		newLayoutCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// withContainer starts a container without background workers, runs fn and
// closes it again.
func withContainer(ctx context.Context, opts *rootOptions, fn func(*container.Container) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger, err = utils.NewLogger(utils.LoggerConfig{Level: "debug", OutputPath: "stderr", Format: "console"})
		if err != nil {
			return err
		}
	}

	cc := cfg.ToContainerConfig()
	cc.Sweeper.Enabled = false

	c, err := container.NewContainer(cc, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
