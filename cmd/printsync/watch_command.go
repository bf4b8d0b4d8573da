package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/daemon"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var stepDelay time.Duration

	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Keep the print in sync with a scene file until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), ctx, args[0], stepDelay)
		},
	}

	cmd.Flags().DurationVar(&stepDelay, "step-delay", 0, "Simulated duration of each step unit")
	return cmd
}

func runWatch(cmdCtx context.Context, ctx *commandContext, scenePath string, stepDelay time.Duration) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	store, err := ctx.openJournal()
	if err != nil {
		return err
	}

	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Scene:    scenePath,
		Handlers: stage.SimulatedSet(stepDelay),
		Journal:  store,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	<-signalCtx.Done()
	logger.Info("shutdown requested", logging.String(logging.FieldEventType, "shutdown"))
	return nil
}
