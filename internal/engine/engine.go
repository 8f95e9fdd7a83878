// Package engine drives day progression and the other ledger-mutating game
// operations. Every mutation is one atomic store transaction; the engine
// never writes based on a read taken outside a transaction.
package engine

import (
	"context"
	"errors"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"pigbank/internal/credit"
	"pigbank/internal/dues"
	"pigbank/internal/ledger"
	"pigbank/internal/payment"
	"pigbank/internal/store"
	"pigbank/internal/timer"
)

// Identity abstracts the auth provider for the death-cleanup cascade.
type Identity interface {
	DeleteUser(ctx context.Context, userID string) error
}

// errStarved aborts the food-check transaction without committing; the
// cleanup cascade handles the rest.
var errStarved = errors.New("starved")

var workJobs = []ledger.Job{ledger.JobPartTime, ledger.JobCompany, ledger.JobFreelance}

// Engine owns the day-progression state machine plus job selection, shop
// purchases and account teardown.
type Engine struct {
	ledgers  store.Ledgers
	timers   *timer.Registry
	identity Identity
	log      *slog.Logger

	mu   sync.Mutex
	rand *mathrand.Rand
	// pending tracks players blocked at the dues gate together with their
	// unsettled items. A retry resumes at the gate instead of re-running
	// the food check and hours tally, and passes once the list drains.
	pending map[string][]dues.Item
}

func New(ledgers store.Ledgers, timers *timer.Registry, identity Identity, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if timers == nil {
		timers = timer.NewRegistry(nil, nil)
	}
	return &Engine{
		ledgers:  ledgers,
		timers:   timers,
		identity: identity,
		log:      logger,
		rand:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		pending:  map[string][]dues.Item{},
	}
}

// SetRandSource replaces the rand source, for deterministic tests.
func (e *Engine) SetRandSource(src mathrand.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rand = mathrand.New(src)
}

// Timers exposes the stopwatch registry for the transport layer.
func (e *Engine) Timers() *timer.Registry {
	return e.timers
}

// Outcome of a day-advance request.
type Outcome string

const (
	OutcomeAdvanced Outcome = "advanced"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeDead     Outcome = "dead"
)

// AdvanceResult describes what one AdvanceDay call did. PendingDues is set
// only for blocked outcomes; Payout and Score only for advanced ones.
type AdvanceResult struct {
	Outcome     Outcome      `json:"outcome"`
	Day         int          `json:"day"`
	Payout      ledger.Cents `json:"payout"`
	Score       *int         `json:"score,omitempty"`
	PendingDues []dues.Item  `json:"pendingDues,omitempty"`
}

// AdvanceDay runs the progression state machine: food check, hours tally,
// dues gate, day increment, payout, timer reset. A blocked result parks the
// flow at the dues gate; calling AdvanceDay again after the dues are settled
// resumes from the gate without repeating the earlier steps.
func (e *Engine) AdvanceDay(ctx context.Context, userID string) (AdvanceResult, error) {
	if userID == "" {
		return AdvanceResult{}, ledger.ErrNotAuthenticated
	}

	blocked, resuming := e.pendingDues(userID)
	if !resuming {
		dead, err := e.foodCheck(ctx, userID)
		if err != nil {
			return AdvanceResult{}, err
		}
		if dead {
			e.cleanup(ctx, userID)
			return AdvanceResult{Outcome: OutcomeDead}, nil
		}
		if err := e.tallyHours(ctx, userID); err != nil {
			return AdvanceResult{}, err
		}
	}

	l, err := e.ledgers.Get(ctx, userID)
	if err != nil {
		e.clearPending(userID)
		return AdvanceResult{}, err
	}
	if !resuming {
		blocked = dues.DueToday(l, l.Day+1)
	}
	if len(blocked) > 0 {
		e.setPending(userID, blocked)
		return AdvanceResult{Outcome: OutcomeBlocked, Day: l.Day, PendingDues: blocked}, nil
	}
	e.clearPending(userID)

	day, err := e.ledgers.IncrementDay(ctx, userID)
	if err != nil {
		return AdvanceResult{}, err
	}

	result := AdvanceResult{Outcome: OutcomeAdvanced, Day: day}
	if _, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		if day%ledger.DaysPerMonth == 0 {
			s := credit.Refresh(l)
			result.Score = &s
		}
		result.Payout = payOut(l, day)
		return nil
	}); err != nil {
		return AdvanceResult{}, err
	}

	e.timers.ResetAll(userID)
	e.log.Info("day advanced",
		"user_id", userID, "day", day, "payout_cents", int64(result.Payout))
	return result, nil
}

// foodCheck decrements food, tracks consecutive starved days, and applies
// the daily carless upkeep charge. Returns true when the starvation limit
// was already exceeded, in which case nothing is committed.
func (e *Engine) foodCheck(ctx context.Context, userID string) (bool, error) {
	_, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		if l.Food == 0 && l.FoodZeroDays > ledger.StarvationLimit {
			return errStarved
		}
		if l.Food == 0 {
			l.FoodZeroDays++
		} else {
			l.FoodZeroDays = 0
		}
		l.Food -= ledger.FoodLossPerDay
		if l.Food < 0 {
			l.Food = 0
		}
		if !l.Car {
			deductUpkeep(l)
		}
		return nil
	})
	if errors.Is(err, errStarved) {
		return true, nil
	}
	return false, err
}

// deductUpkeep charges the daily no-car fee against total and the first
// checking partition, clamping both at zero.
func deductUpkeep(l *ledger.Ledger) {
	charge := ledger.DailyUpkeepCents
	if l.LiquidMoney.Total < charge {
		charge = l.LiquidMoney.Total
	}
	l.LiquidMoney.Total -= charge
	if key := l.FirstCheckingKey(); key != "" {
		bal := l.LiquidMoney.CheckingAccount[key]
		if bal < charge {
			charge = bal
		}
		l.LiquidMoney.CheckingAccount[key] = bal - charge
	}
}

// tallyHours folds the session stopwatches into the ledger: jobDone when the
// summed whole minutes meet the job's threshold, and only then do the
// minutes accrue toward the next payout.
func (e *Engine) tallyHours(ctx context.Context, userID string) error {
	minutes := 0
	for _, job := range workJobs {
		minutes += e.timers.For(userID, job).Minutes()
	}
	_, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		l.JobDone = l.Job.Valid() && minutes >= l.Job.RequiredMinutes()
		if l.JobDone {
			l.HoursWorked += minutes
		}
		return nil
	})
	return err
}

// payOut credits accumulated worked minutes when the job's payout period
// lands on the new day. Minutes reset only after an actual payout, so
// threshold-met cycles between part-time paydays roll forward.
func payOut(l *ledger.Ledger, day int) ledger.Cents {
	if !l.JobDone || !l.Job.Valid() || l.HoursWorked <= 0 {
		return 0
	}
	if day%l.Job.PayoutEvery() != 0 {
		return 0
	}
	pay := ledger.Cents(l.HoursWorked) * l.Job.RatePerMinute()
	l.LiquidMoney.Total += pay
	if key := l.FirstCheckingKey(); key != "" {
		l.LiquidMoney.CheckingAccount[key] += pay
	}
	l.HoursWorked = 0
	return pay
}

// SettleDue pays one due item and, when the player is blocked mid-advance,
// crosses it off the tracked pending list. The next AdvanceDay call passes
// the gate once the list is empty.
func (e *Engine) SettleDue(ctx context.Context, userID string, item dues.Item, method payment.Method, accountKey string) (*ledger.Ledger, error) {
	l, err := payment.Settle(ctx, e.ledgers, userID, item, method, accountKey)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	remaining := e.pending[userID][:0]
	for _, p := range e.pending[userID] {
		if p.Label == item.Label && p.LoanID == item.LoanID {
			continue
		}
		remaining = append(remaining, p)
	}
	if _, tracked := e.pending[userID]; tracked {
		e.pending[userID] = remaining
	}
	e.mu.Unlock()
	return l, nil
}

func (e *Engine) pendingDues(userID string) ([]dues.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	items, ok := e.pending[userID]
	return items, ok
}

func (e *Engine) setPending(userID string, items []dues.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[userID] = items
}

func (e *Engine) clearPending(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, userID)
}

// cleanup is the best-effort death cascade: identity first, then the ledger
// record, then the in-memory stopwatches. Failures are logged and do not
// stop the next step.
func (e *Engine) cleanup(ctx context.Context, userID string) {
	if e.identity != nil {
		if err := e.identity.DeleteUser(ctx, userID); err != nil {
			e.log.Error("death cleanup: identity delete failed", "user_id", userID, "err", err)
		}
	}
	if err := e.ledgers.Delete(ctx, userID); err != nil {
		e.log.Error("death cleanup: ledger delete failed", "user_id", userID, "err", err)
	}
	e.timers.Drop(userID)
	e.clearPending(userID)
	e.log.Info("player died of starvation", "user_id", userID)
}

// DeleteAccount tears down a player on request, same cascade as death.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) {
	e.cleanup(ctx, userID)
}

// Signup creates the initial ledger. Repeats are idempotent.
func (e *Engine) Signup(ctx context.Context, userID string) (*ledger.Ledger, error) {
	if err := e.ledgers.Create(ctx, userID, ledger.New()); err != nil {
		return nil, err
	}
	return e.ledgers.Get(ctx, userID)
}
