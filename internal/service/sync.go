package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	ridemeterredis "ridemeter/internal/redis"
)

// SyncReport summarizes one SyncAll pass.
type SyncReport struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SyncScheduler periodically pushes every open session to the backend.
// Failed sessions keep their ledger and are retried on the next pass.
type SyncScheduler struct {
	registry *SessionRegistry
	locker   ridemeterredis.SyncLocker
	interval time.Duration
	lockTTL  time.Duration
	nrApp    *newrelic.Application
	logger   *slog.Logger
}

// NewSyncScheduler creates a SyncScheduler. locker and nrApp may be nil;
// without a locker every instance syncs every session it holds.
func NewSyncScheduler(
	registry *SessionRegistry,
	locker ridemeterredis.SyncLocker,
	interval, lockTTL time.Duration,
	nrApp *newrelic.Application,
	logger *slog.Logger,
) *SyncScheduler {
	return &SyncScheduler{
		registry: registry,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		nrApp:    nrApp,
		logger:   logger,
	}
}

// RunScheduler syncs on every tick until ctx is cancelled.
func (s *SyncScheduler) RunScheduler(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// SyncAll syncs every open session once.
func (s *SyncScheduler) SyncAll(ctx context.Context) SyncReport {
	txn := s.nrApp.StartTransaction("billing-sync")
	defer txn.End()
	ctx = newrelic.NewContext(ctx, txn)

	var report SyncReport
	for _, driverID := range s.registry.DriverIDs() {
		if ctx.Err() != nil {
			break
		}
		switch s.syncDriver(ctx, driverID) {
		case syncDone:
			report.Synced++
		case syncFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	txn.AddAttribute("synced", report.Synced)
	txn.AddAttribute("failed", report.Failed)
	if report.Synced+report.Failed > 0 {
		s.logger.Info("sync pass finished",
			"synced", report.Synced,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}
	return report
}

type syncOutcome int

const (
	syncSkipped syncOutcome = iota
	syncDone
	syncFailed
)

func (s *SyncScheduler) syncDriver(ctx context.Context, driverID string) syncOutcome {
	if s.locker != nil {
		ok, err := s.locker.AcquireSyncLock(ctx, driverID, s.lockTTL)
		if err != nil {
			s.logger.Warn("sync lock unavailable", "driver_id", driverID, "error", err)
			return syncSkipped
		}
		if !ok {
			return syncSkipped
		}
		defer func() {
			if err := s.locker.ReleaseSyncLock(ctx, driverID); err != nil {
				s.logger.Warn("sync lock release failed", "driver_id", driverID, "error", err)
			}
		}()
	}

	session, err := s.registry.Get(ctx, driverID)
	if err != nil {
		s.logger.Error("sync: session unavailable", "driver_id", driverID, "error", err)
		return syncFailed
	}
	if !session.Billing().SyncWithBackend(ctx) {
		return syncFailed
	}
	return syncDone
}
