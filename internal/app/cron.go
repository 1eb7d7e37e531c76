package app

import (
	"context"
	"time"

	"github.com/worldindex/core/internal/modules/federation"
	"github.com/worldindex/core/internal/modules/presence"
	pkgcron "github.com/worldindex/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers the background jobs: continuous presence
// pruning, draining of queued federation deliveries and remote actor refresh.
func registerCronJobs(sched *pkgcron.Scheduler, logger *zap.Logger, tracker *presence.Tracker, fanout *federation.Fanout, fedSvc *federation.Service) {
	cronLogger := logger.Named("cron")

	sched.Register(pkgcron.Job{
		Name:     "prune_presence",
		Interval: time.Second,
		Fn: func(ctx context.Context) error {
			tracker.Prune(time.Now().UnixMilli())
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:     "drain_deliveries",
		Interval: 10 * time.Second,
		Fn: func(ctx context.Context) error {
			if err := fanout.DrainQueued(ctx); err != nil {
				cronLogger.Warn("queued delivery drain failed", zap.Error(err))
				return err
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:     "refresh_actors",
		Interval: 24 * time.Hour,
		Fn: func(ctx context.Context) error {
			if err := fedSvc.RefreshStaleActors(ctx); err != nil {
				cronLogger.Warn("actor refresh failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
