package usecase

import (
	"context"
	"log/slog"
	"time"

	"PDFLibraryBot/internal/ports"
)

// Sweeper drops expired entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Maintenance wires the scheduler driver with periodic cleanup jobs.
type Maintenance struct {
	driver  ports.Scheduler
	sweeper Sweeper
	logger  *slog.Logger
}

// NewMaintenance returns a helper to start/stop recurring jobs.
func NewMaintenance(driver ports.Scheduler, sweeper Sweeper, logger *slog.Logger) *Maintenance {
	return &Maintenance{driver: driver, sweeper: sweeper, logger: logger}
}

// Start registers the sweep with the provided scheduler.
func (m *Maintenance) Start(ctx context.Context) error {
	if m.driver == nil || m.sweeper == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if removed := m.sweeper.Sweep(trigger); removed > 0 && m.logger != nil {
			m.logger.Debug("expired dialogs swept", "removed", removed)
		}
	}

	return m.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (m *Maintenance) Stop(ctx context.Context) error {
	if m.driver == nil {
		return nil
	}

	return m.driver.Stop(ctx)
}
