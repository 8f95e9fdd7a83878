package engine

import (
	"context"
	"io"
	"log/slog"
	mathrand "math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigbank/internal/clock"
	"pigbank/internal/dues"
	"pigbank/internal/ledger"
	"pigbank/internal/payment"
	"pigbank/internal/store"
	"pigbank/internal/timer"
)

type fixture struct {
	engine *Engine
	store  *store.Memory
	clock  *clock.Fake
}

func newFixture(t *testing.T, mutate func(*ledger.Ledger)) fixture {
	t.Helper()
	mem := store.NewMemory()
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	timers := timer.NewRegistry(clk, nil)
	eng := New(mem, timers, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	seed := ledger.New()
	if mutate != nil {
		mutate(seed)
	}
	require.NoError(t, mem.Create(context.Background(), "alice", seed))
	return fixture{engine: eng, store: mem, clock: clk}
}

func (f fixture) ledger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := f.store.Get(context.Background(), "alice")
	require.NoError(t, err)
	return l
}

func TestAdvanceDecrementsFoodAndUpkeep(t *testing.T) {
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Day = 1
		l.Food = 10
	})
	res, err := f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 2, res.Day)

	l := f.ledger(t)
	assert.Equal(t, 8, l.Food)
	assert.Equal(t, 0, l.FoodZeroDays)
	// No car: the $1 upkeep came out of checking.
	assert.Equal(t, ledger.StarterCheckingCents-ledger.DailyUpkeepCents, l.LiquidMoney.Total)
}

func TestCarSkipsDailyUpkeep(t *testing.T) {
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Food = 10
		l.Car = true
	})
	_, err := f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.StarterCheckingCents, f.ledger(t).LiquidMoney.Total)
}

func TestStarvationBoundary(t *testing.T) {
	// foodZeroDays=5 survives the advance; 6 dies.
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Food = 0
		l.FoodZeroDays = 5
	})
	res, err := f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 6, f.ledger(t).FoodZeroDays)

	f = newFixture(t, func(l *ledger.Ledger) {
		l.Food = 0
		l.FoodZeroDays = 6
	})
	res, err = f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDead, res.Outcome)

	_, err = f.store.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, ledger.ErrLedgerMissing)
}

func TestHoursTallyRequiresThreshold(t *testing.T) {
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Food = 10
		l.Job = ledger.JobCompany
	})
	// Company needs 4 minutes; give it 2.
	sw := f.engine.Timers().For("alice", ledger.JobCompany)
	sw.Start()
	f.clock.Advance(2 * time.Minute)
	sw.Pause()

	_, err := f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	l := f.ledger(t)
	assert.False(t, l.JobDone)
	assert.Zero(t, l.HoursWorked)
}

func TestPayoutGatePartTime(t *testing.T) {
	// Day 9 -> 10 pays out part-time work; 10 -> 11 does not.
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Day = 9
		l.Food = 20
		l.Job = ledger.JobPartTime
		l.HoursWorked = 2
	})
	sw := f.engine.Timers().For("alice", ledger.JobPartTime)
	sw.Start()
	f.clock.Advance(3 * time.Minute)
	sw.Pause()

	res, err := f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 10, res.Day)
	// 2 rolled-forward minutes + 3 from this session, at $100/min.
	assert.Equal(t, ledger.Cents(5*100*ledger.CentsPerDollar), res.Payout)

	l := f.ledger(t)
	assert.Zero(t, l.HoursWorked)
	assert.True(t, l.JobDone)

	// Timers were reset; work another qualifying session for day 11.
	sw = f.engine.Timers().For("alice", ledger.JobPartTime)
	require.Equal(t, 0, sw.Minutes())
	sw.Start()
	f.clock.Advance(3 * time.Minute)
	sw.Pause()

	res, err = f.engine.AdvanceDay(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 11, res.Day)
	assert.Zero(t, res.Payout)
	assert.Equal(t, 3, f.ledger(t).HoursWorked)
}

func TestBlockedAdvanceAtDuesGate(t *testing.T) {
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Day = 14
		l.Food = 20
		l.Credit.CreditCardBill = 80 * ledger.CentsPerDollar
		l.LiquidMoney.Total = 1000 * ledger.CentsPerDollar
		l.LiquidMoney.CheckingAccount["main"] = 1000 * ledger.CentsPerDollar
	})
	ctx := context.Background()

	res, err := f.engine.AdvanceDay(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, res.Outcome)
	require.Len(t, res.PendingDues, 2)
	assert.Equal(t, dues.LabelRent, res.PendingDues[0].Label)
	assert.Equal(t, dues.LabelCredit, res.PendingDues[1].Label)
	assert.Equal(t, ledger.Cents(80*ledger.CentsPerDollar), res.PendingDues[1].Amount)
	assert.Equal(t, 14, f.ledger(t).Day)

	foodAfterBlock := f.ledger(t).Food

	// A retry with dues still pending stays blocked and repeats nothing.
	res, err = f.engine.AdvanceDay(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, res.Outcome)

	// Settle both dues, then retry. The retry resumes at the gate, so food
	// is not decremented a second time.
	for _, item := range res.PendingDues {
		_, err := f.engine.SettleDue(ctx, "alice", item, payment.MethodDebit, "main")
		require.NoError(t, err)
	}
	res, err = f.engine.AdvanceDay(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 15, res.Day)
	assert.Equal(t, foodAfterBlock, f.ledger(t).Food)

	// Day 15 is a score cadence day.
	require.NotNil(t, res.Score)
	assert.GreaterOrEqual(t, *res.Score, 300)
	assert.LessOrEqual(t, *res.Score, 850)
}

func TestSelectJobPartTimeAlwaysHires(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.SetRandSource(mathrand.NewSource(1))

	decision, err := f.engine.SelectJob(context.Background(), "alice", ledger.JobPartTime)
	require.NoError(t, err)
	assert.True(t, decision.Hired)
	assert.Equal(t, 1.0, decision.Chance)
	assert.Equal(t, ledger.JobPartTime, f.ledger(t).Job)

	_, err = f.engine.SelectJob(context.Background(), "alice", ledger.Job("Astronaut"))
	assert.ErrorIs(t, err, ledger.ErrInvalidSelection)
}

func TestPurchaseFoodAndCar(t *testing.T) {
	f := newFixture(t, func(l *ledger.Ledger) {
		l.LiquidMoney.Total = 60000 * ledger.CentsPerDollar
		l.LiquidMoney.CheckingAccount["main"] = 60000 * ledger.CentsPerDollar
	})
	ctx := context.Background()

	l, err := f.engine.Purchase(ctx, "alice", "food", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Food)
	assert.Equal(t, ledger.Cents(59990*ledger.CentsPerDollar), l.LiquidMoney.Total)

	l, err = f.engine.Purchase(ctx, "alice", "car", 0)
	require.NoError(t, err)
	assert.True(t, l.Car)

	_, err = f.engine.Purchase(ctx, "alice", "car", 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidSelection)

	_, err = f.engine.Purchase(ctx, "alice", "house", 0)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestSweepClosingBalances(t *testing.T) {
	f := newFixture(t, func(l *ledger.Ledger) {
		l.Day = 10
		l.Credit.CreditCardBill = 12345
	})
	seed := ledger.New()
	seed.Day = 12
	require.NoError(t, f.store.Create(context.Background(), "bob", seed))

	updated, err := f.engine.SweepClosingBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	l := f.ledger(t)
	require.NotNil(t, l.Credit.LastClosingBalance)
	assert.Equal(t, ledger.Cents(12345), *l.Credit.LastClosingBalance)

	bob, err := f.store.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.Nil(t, bob.Credit.LastClosingBalance)
}
