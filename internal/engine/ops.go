package engine

import (
	"context"
	"fmt"

	"pigbank/internal/credit"
	"pigbank/internal/ledger"
	"pigbank/internal/loan"
)

// JobDecision is the outcome of a job application.
type JobDecision struct {
	Hired  bool       `json:"hired"`
	Chance float64    `json:"chance"`
	Job    ledger.Job `json:"job"`
}

// SelectJob applies for the given job. Approval is a single uniform draw
// against the job's hire chance; on hire the ledger's job is replaced and
// pending worked minutes are kept.
func (e *Engine) SelectJob(ctx context.Context, userID string, job ledger.Job) (JobDecision, error) {
	if !job.Valid() {
		return JobDecision{}, fmt.Errorf("%w: unknown job %q", ledger.ErrInvalidSelection, job)
	}
	chance := job.HireChance()

	e.mu.Lock()
	draw := e.rand.Float64()
	e.mu.Unlock()

	if draw >= chance {
		return JobDecision{Hired: false, Chance: chance, Job: job}, nil
	}
	if _, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		l.Job = job
		l.JobDone = false
		return nil
	}); err != nil {
		return JobDecision{}, err
	}
	e.log.Info("job selected", "user_id", userID, "job", string(job))
	return JobDecision{Hired: true, Chance: chance, Job: job}, nil
}

// Shop prices.
const (
	FoodUnitPriceCents = 2 * ledger.CentsPerDollar
	HousePriceCents    = 50000 * ledger.CentsPerDollar
	CarPriceCents      = 50000 * ledger.CentsPerDollar
)

// Purchase buys a shop item from the first checking partition. Food takes a
// quantity; house and car are one-time flags and repeat purchases fail.
func (e *Engine) Purchase(ctx context.Context, userID, item string, quantity int) (*ledger.Ledger, error) {
	return e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		var price ledger.Cents
		switch item {
		case "food":
			if quantity <= 0 {
				quantity = 1
			}
			price = FoodUnitPriceCents * ledger.Cents(quantity)
		case "house":
			if l.OwnsHouse() {
				return fmt.Errorf("%w: already own a house", ledger.ErrInvalidSelection)
			}
			price = HousePriceCents
		case "car":
			if l.Car {
				return fmt.Errorf("%w: already own a car", ledger.ErrInvalidSelection)
			}
			price = CarPriceCents
		default:
			return fmt.Errorf("%w: unknown item %q", ledger.ErrInvalidSelection, item)
		}

		key := l.FirstCheckingKey()
		if key == "" {
			return fmt.Errorf("%w: no checking account", ledger.ErrInvalidSelection)
		}
		if l.LiquidMoney.Total < price || l.LiquidMoney.CheckingAccount[key] < price {
			return fmt.Errorf("%w: %s costs %d cents", ledger.ErrInsufficientFunds, item, price)
		}
		l.LiquidMoney.Total -= price
		l.LiquidMoney.CheckingAccount[key] -= price

		switch item {
		case "food":
			l.Food += quantity
		case "house":
			l.Housing = "house"
		case "car":
			l.Car = true
		}
		return l.CheckInvariant()
	})
}

// ApplyForLoan underwrites a loan request inside one transaction.
func (e *Engine) ApplyForLoan(ctx context.Context, userID string, underwriter *loan.Underwriter, principal ledger.Cents, termMonths int) (loan.Decision, error) {
	var decision loan.Decision
	_, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		var applyErr error
		decision, applyErr = underwriter.Apply(l, principal, termMonths)
		return applyErr
	})
	if err != nil {
		return loan.Decision{}, err
	}
	if decision.Approved {
		e.log.Info("loan approved",
			"user_id", userID, "loan_id", decision.LoanID,
			"principal_cents", int64(principal), "rate", decision.Rate)
	}
	return decision, nil
}

// ApplyForCard runs a credit card application inside one transaction.
func (e *Engine) ApplyForCard(ctx context.Context, userID string, issuer *credit.Issuer) (credit.CardDecision, error) {
	var decision credit.CardDecision
	_, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		decision = issuer.ApplyForCard(l)
		return nil
	})
	if err != nil {
		return credit.CardDecision{}, err
	}
	return decision, nil
}

// RecomputeScore refreshes the stored credit score on demand.
func (e *Engine) RecomputeScore(ctx context.Context, userID string) (int, error) {
	var score int
	_, err := e.ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		score = credit.Refresh(l)
		return nil
	})
	return score, err
}
