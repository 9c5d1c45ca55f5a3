package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Consume generation jobs from redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, runCtx, cancel, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer cancel()
			defer a.Close()

			err = a.Work(runCtx)
			if errors.Is(err, runCtx.Err()) {
				ctx.logger.Info("worker stopped")
				return nil
			}
			return err
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the attachment table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, runCtx, cancel, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer cancel()
			defer a.Close()

			if err := a.Migrate(runCtx); err != nil {
				return err
			}
			ctx.logger.Info("migration complete")
			return nil
		},
	}
}

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <attachment-id>...",
		Short: "Enqueue every format of the given attachments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid attachment id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}

			a, runCtx, cancel, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer cancel()
			defer a.Close()

			for _, id := range ids {
				queued, err := a.Uploader.Regenerate(runCtx, id)
				if err != nil {
					return fmt.Errorf("regenerate %s: %w", id, err)
				}
				ctx.logger.Info("regeneration enqueued", zap.Stringer("attachment", id), zap.Int("jobs", queued))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d jobs\n", id, queued)
			}
			return nil
		},
	}
}
