package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go-time-archive/internal/app"
	"go-time-archive/internal/config"
	"go-time-archive/internal/logger"
)

// NewRootCmd builds the archiver command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "archiver",
		Short: "Policy-driven file archiver",
		Long: `archiver moves files and folders that a rule selects into a per-user
.archive folder, mirroring their original location. Rules select by age
(time rules) or by an assigned system tag (tag rules).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newRepairCmd(),
		newMigrateCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)

	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// setupLogger installs the configured handler as the slog default. Logs go to
// stderr so command output on stdout stays parseable.
func setupLogger(cfg *config.Config) *slog.Logger {
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	return log
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(ctx, cfg, setupLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}

	return application, nil
}
