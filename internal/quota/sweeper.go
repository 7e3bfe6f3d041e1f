package quota

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const sweepBatchSize = 100

// ReleaseReport 过期预留的处理结果
type ReleaseReport struct {
	RolledBack int
}

// ReleaseExpired rolls back reservations that outlived their TTL. Sheets are
// only ever stored together with the commit of their reservation, so a
// reservation that is still reserved has delivered nothing.
func (l *Ledger) ReleaseExpired(ctx context.Context, now time.Time) (ReleaseReport, error) {
	var report ReleaseReport
	for {
		expired, err := l.store.ListExpiredReservations(ctx, now, sweepBatchSize)
		if err != nil {
			return report, err
		}
		if len(expired) == 0 {
			return report, nil
		}

		progressed := false
		for _, res := range expired {
			_, transitioned, err := l.store.RollbackReservation(ctx, res.ID, now)
			if err != nil {
				return report, err
			}
			if transitioned {
				report.RolledBack++
				progressed = true
				logrus.WithFields(logrus.Fields{
					"user_id":        res.UserID,
					"reservation_id": res.ID,
					"amount":         res.Amount,
				}).Warn("expired_reservation_rolled_back")
			}
		}
		if !progressed || len(expired) < sweepBatchSize {
			return report, nil
		}
	}
}

// RunSweeper calls ReleaseExpired every interval until ctx is cancelled.
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := l.ReleaseExpired(ctx, l.now())
			if err != nil {
				logrus.WithError(err).Warn("reservation_sweep_failed")
				continue
			}
			if report.RolledBack > 0 {
				logrus.WithField("rolled_back", report.RolledBack).Info("expired_reservations_released")
			}
		}
	}
}
