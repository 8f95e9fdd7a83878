// Package loan implements loan underwriting: rate pricing, the stochastic
// approval decision, and installment math.
package loan

import (
	"fmt"
	"math"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"pigbank/internal/credit"
	"pigbank/internal/ledger"
)

const (
	approvalFloor = 0.02

	// defaultLimitDollars stands in for the credit limit when the applicant
	// has none, so the size penalty still has a denominator.
	defaultLimitDollars = 100.0
)

// Decision is the outcome of a loan application. Denied applications carry
// the computed approval chance so the caller can explain the odds.
type Decision struct {
	Approved       bool         `json:"approved"`
	Chance         float64      `json:"chance"`
	LoanID         string       `json:"loanId,omitempty"`
	Rate           float64      `json:"rate,omitempty"`
	MonthlyPayment ledger.Cents `json:"monthlyPayment,omitempty"`
	Remaining      ledger.Cents `json:"remaining,omitempty"`
}

// RateFor prices the annual interest rate as a step function of credit score.
func RateFor(score int) float64 {
	switch {
	case score >= 750:
		return 0.05
	case score >= 700:
		return 0.08
	case score >= 650:
		return 0.12
	case score >= 600:
		return 0.18
	default:
		return 0.25
	}
}

// MonthlyPayment computes the standard amortization installment for the
// principal at the given annual rate over termMonths.
func MonthlyPayment(principal ledger.Cents, annualRate float64, termMonths int) ledger.Cents {
	if termMonths <= 0 {
		return 0
	}
	p := principal.Dollars()
	r := annualRate / 12
	if r == 0 {
		return ledger.DollarsToCents(p / float64(termMonths))
	}
	payment := p * r / (1 - math.Pow(1+r, -float64(termMonths)))
	return ledger.DollarsToCents(payment)
}

// ApprovalChance combines the score-based base chance with a penalty for
// principals large relative to the applicant's credit limit.
func ApprovalChance(l *ledger.Ledger, principal ledger.Cents) float64 {
	score := credit.EffectiveScore(l)
	base := float64(score-credit.ScoreFloor) / 550
	base = clamp(base, 0.05, 0.95)

	limit := l.Credit.CreditLimit.Dollars()
	if limit <= 0 {
		limit = defaultLimitDollars
	}
	penalty := clamp((principal.Dollars()/limit-0.5)/5, 0, 0.5)

	chance := base - penalty
	if chance < approvalFloor {
		chance = approvalFloor
	}
	return chance
}

// Underwriter draws loan approvals. One shared instance per process; the
// mutex guards the rand source.
type Underwriter struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewUnderwriter() *Underwriter {
	return &Underwriter{rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))}
}

// NewUnderwriterWithSource returns an underwriter with a fixed source for tests.
func NewUnderwriterWithSource(src mathrand.Source) *Underwriter {
	return &Underwriter{rand: mathrand.New(src)}
}

// Apply decides a loan application and, on approval, writes the loan and
// credits the principal to the ledger. Intended to run inside a store
// transaction; a denial leaves the ledger untouched.
func (u *Underwriter) Apply(l *ledger.Ledger, principal ledger.Cents, termMonths int) (Decision, error) {
	if principal <= 0 || termMonths <= 0 {
		return Decision{}, fmt.Errorf("%w: principal and term must be positive", ledger.ErrInvalidSelection)
	}
	chance := ApprovalChance(l, principal)

	u.mu.Lock()
	draw := u.rand.Float64()
	u.mu.Unlock()

	if draw >= chance {
		return Decision{Approved: false, Chance: chance}, nil
	}

	rate := RateFor(credit.EffectiveScore(l))
	payment := MonthlyPayment(principal, rate, termMonths)
	remaining := payment * ledger.Cents(termMonths)

	id := fmt.Sprintf("loan-%s", uuid.NewString()[:8])
	if l.Loans == nil {
		l.Loans = map[string]ledger.Loan{}
	}
	l.Loans[id] = ledger.Loan{
		Amount:         principal,
		InterestRate:   rate,
		TermMonths:     termMonths,
		MonthlyPayment: payment,
		Remaining:      remaining,
	}

	l.LiquidMoney.Total += principal
	if key := l.FirstCheckingKey(); key != "" {
		l.LiquidMoney.CheckingAccount[key] += principal
	}

	return Decision{
		Approved:       true,
		Chance:         chance,
		LoanID:         id,
		Rate:           rate,
		MonthlyPayment: payment,
		Remaining:      remaining,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
