package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/pkg/logger"
)

// Start begins consuming River jobs: mailed exports, the OFD refresh and
// audit cleanup.
func (a *Application) Start(ctx context.Context) error {
	if a.DB == nil || a.DB.RiverClient == nil {
		logger.Warn("Job queue not initialized; exports by email and periodic jobs are disabled")
		return nil
	}
	if err := a.DB.RiverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	logger.Info("Job queue started")
	return nil
}

// Shutdown stops the job queue, then the modules, then the goroutine pools
// and the database pool. Jobs still running when ctx expires are cancelled.
func (a *Application) Shutdown(ctx context.Context) {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(ctx); err != nil {
			logger.Warn("Job queue did not stop in time, cancelling running jobs", zap.Error(err))
			_ = a.DB.RiverClient.StopAndCancel(context.Background())
		}
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			logger.Warn("Module shutdown failed", zap.String("module", mod.Name()), zap.Error(err))
		}
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	logger.Info("Application stopped")
}
