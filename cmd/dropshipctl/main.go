// Command dropshipctl runs catalog, fulfillment and schema tasks on demand.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dropship/backend/internal/bootstrap"
	"github.com/dropship/backend/internal/infrastructure/config"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds state shared by every subcommand
type cli struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}
	var logLevel string

	root := &cobra.Command{
		Use:           "dropshipctl",
		Short:         "Operate the dropship backend from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			log, err := logger.New(&logger.Config{
				Level:  cfg.Log.Level,
				Format: "console",
				Output: "stderr",
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.cfg = cfg
			c.log = log
			c.out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = logger.Sync(c.log)
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		c.syncCmd(),
		c.repriceCmd(),
		c.stockCmd(),
		c.pollCmd(),
		c.reviewsCmd(),
		c.jobsCmd(),
		c.migrateCmd(),
		versionCmd(),
	)
	return root
}

// withApp builds the application for one command and releases it afterwards
func (c *cli) withApp(ctx context.Context, fn func(*bootstrap.App) error) error {
	app, err := bootstrap.New(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn("failed to release resources", zap.Error(err))
		}
	}()
	return fn(app)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		// skips config loading
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), bootstrap.Version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
