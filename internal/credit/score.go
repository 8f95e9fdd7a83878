// Package credit implements the scoring model and credit card issuance.
package credit

import (
	"math"

	"pigbank/internal/ledger"
)

const (
	ScoreFloor   = 300
	ScoreCeiling = 850
	scoreRange   = ScoreCeiling - ScoreFloor

	// loanBurdenCapCents is the outstanding principal at which the loan
	// factor bottoms out.
	loanBurdenCapCents = 10000 * ledger.CentsPerDollar

	// Factor weights. Payment behavior dominates, then utilization, then
	// loan burden and account age.
	weightPayment     = 0.35
	weightUtilization = 0.25
	weightLoans       = 0.20
	weightLength      = 0.20
)

// Score computes the 300-850 credit score from a ledger snapshot. Pure; no
// mutation.
func Score(l *ledger.Ledger) int {
	combined := weightPayment*paymentRatio(l) +
		weightUtilization*utilizationScore(l) +
		weightLoans*loanFactor(l) +
		weightLength*lengthNorm(l)
	score := ScoreFloor + int(math.Round(combined*scoreRange))
	if score < ScoreFloor {
		return ScoreFloor
	}
	if score > ScoreCeiling {
		return ScoreCeiling
	}
	return score
}

// paymentRatio is the fraction of expected periodic payments that show up as
// on-time rent, credit or loan entries. A missing onTime flag counts as
// on-time.
func paymentRatio(l *ledger.Ledger) float64 {
	expected := l.Day / ledger.DaysPerMonth
	if expected < 1 {
		expected = 1
	}
	onTime := 0
	for _, rec := range l.Credit.PaymentHistory {
		switch rec.Type {
		case "rent", "credit", "loan":
		default:
			continue
		}
		if rec.OnTime == nil || *rec.OnTime {
			onTime++
		}
	}
	ratio := float64(onTime) / float64(expected)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// utilizationScore rewards low credit usage. The closing-balance snapshot is
// preferred over the live bill when one has been taken.
func utilizationScore(l *ledger.Ledger) float64 {
	if l.Credit.CreditLimit <= 0 {
		return 1
	}
	balance := l.Credit.CreditCardBill
	if l.Credit.LastClosingBalance != nil {
		balance = *l.Credit.LastClosingBalance
	}
	if balance < 0 {
		balance = 0
	}
	util := float64(balance) / float64(l.Credit.CreditLimit)
	if util > 1 {
		util = 1
	}
	return 1 - util
}

func loanFactor(l *ledger.Ledger) float64 {
	burden := float64(l.TotalLoanPrincipal()) / float64(loanBurdenCapCents)
	if burden > 1 {
		burden = 1
	}
	return 1 - burden
}

func lengthNorm(l *ledger.Ledger) float64 {
	years := float64(l.Day) / 365
	norm := years / 5
	if norm > 1 {
		norm = 1
	}
	return norm
}

// EffectiveScore returns the stored score, or the default applicants start
// from when no score has been computed yet.
func EffectiveScore(l *ledger.Ledger) int {
	if l.Credit.CreditScore != nil {
		return *l.Credit.CreditScore
	}
	return 600
}

// Refresh recomputes and stores the score on the ledger.
func Refresh(l *ledger.Ledger) int {
	s := Score(l)
	l.Credit.CreditScore = &s
	return s
}
