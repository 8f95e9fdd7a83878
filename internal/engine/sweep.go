package engine

import (
	"context"
	"errors"

	"pigbank/internal/credit"
	"pigbank/internal/ledger"
)

// errSkipSweep aborts a sweep transaction for players outside the target
// window without counting it as a failure.
var errSkipSweep = errors.New("sweep: not applicable")

// closingSnapshotDay is the point in the billing cycle (day mod 15) at which
// the card balance is frozen for utilization scoring, five days before the
// bill falls due.
const closingSnapshotDay = 10

// SweepClosingBalances snapshots the card balance of every player sitting on
// the snapshot day of their cycle. Run periodically by the worker; players
// advance days at their own pace, so the sweep re-checks everyone.
func (e *Engine) SweepClosingBalances(ctx context.Context) (int, error) {
	ids, err := e.ledgers.List(ctx)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, id := range ids {
		_, err := e.ledgers.Update(ctx, id, func(l *ledger.Ledger) error {
			if l.Day%ledger.DaysPerMonth != closingSnapshotDay {
				return errSkipSweep
			}
			balance := l.Credit.CreditCardBill
			l.Credit.LastClosingBalance = &balance
			return nil
		})
		if err == nil {
			updated++
			continue
		}
		if errors.Is(err, errSkipSweep) {
			continue
		}
		e.log.Warn("closing balance sweep failed", "user_id", id, "err", err)
	}
	return updated, nil
}

// SweepScores refreshes every stored credit score. A safety net for players
// whose score-cadence day advanced while the service was down.
func (e *Engine) SweepScores(ctx context.Context) (int, error) {
	ids, err := e.ledgers.List(ctx)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, id := range ids {
		if _, err := e.ledgers.Update(ctx, id, func(l *ledger.Ledger) error {
			credit.Refresh(l)
			return nil
		}); err != nil {
			e.log.Warn("score sweep failed", "user_id", id, "err", err)
			continue
		}
		updated++
	}
	return updated, nil
}
