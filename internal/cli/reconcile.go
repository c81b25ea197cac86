package cli

import (
	"context"
	"fmt"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/worker"

	"github.com/spf13/cobra"
)

// NewReconcileCmd schedules a rank recomputation for every user with a
// submission. Without Redis the recomputation runs inline.
func NewReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Refresh every stored leaderboard rank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), *configPath)
		},
	}
}

func runReconcile(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	log := newLogger(cfg)

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.redis != nil {
		_, err := worker.Reconcile(ctx, d.updater, d.queue, log)
		return err
	}
	n, err := d.updater.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	log.WithField("users", n).Info("ranks recomputed")
	return nil
}
