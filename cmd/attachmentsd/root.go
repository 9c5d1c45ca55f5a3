package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/app"
	"github.com/sndcds/attachments/logging"
)

// commandContext loads configuration and logger once per invocation.
type commandContext struct {
	configFile *string
	config     app.Config
	logger     *zap.Logger
}

func (c *commandContext) load() error {
	config, err := app.LoadConfig(*c.configFile)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(config.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.config = config
	c.logger = logger
	return nil
}

// openApp builds the application bound to a context that is cancelled on
// SIGINT or SIGTERM.
func (c *commandContext) openApp() (*app.App, context.Context, context.CancelFunc, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a, err := app.New(ctx, c.config, c.logger)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return a, ctx, cancel, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFile: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "attachmentsd",
		Short:         "Attachment storage and image format service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if ctx.logger != nil {
				_ = ctx.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newRegenerateCommand(ctx))
	return rootCmd
}
