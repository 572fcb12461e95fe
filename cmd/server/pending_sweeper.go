package main

import (
	"context"
	"log/slog"
	"time"

	paymentservice "forexhub/internal/payment/service"
)

const pendingSweepTimeout = 30 * time.Second

// startPendingSweeper expires payments whose callback never arrived and
// finishes confirmations interrupted before their ledger write.
func startPendingSweeper(ctx context.Context, svc *paymentservice.Service, interval, olderThan time.Duration, logger *slog.Logger) {
	if svc == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, pendingSweepTimeout)
			report, err := svc.SweepStale(runCtx, olderThan)
			cancel()
			if err != nil {
				logger.Error("pending sweeper failed", "error", err)
				return
			}
			if report.Expired > 0 || report.Completed > 0 {
				logger.Info("pending sweeper",
					"pending", report.Pending,
					"expired", report.Expired,
					"completed", report.Completed,
				)
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
