// Package dues computes which periodic obligations fall due on a given day.
// Everything here is a pure projection over a ledger snapshot; nothing
// mutates state, so callers may probe hypothetical days freely.
package dues

import (
	"sort"

	"pigbank/internal/ledger"
)

// Standard billing periods in simulated days.
const (
	RentPeriod      = 15
	CreditPeriod    = 15
	UtilitiesPeriod = 30
	TaxesPeriod     = 45
	LoanPeriod      = ledger.DaysPerMonth
)

// Item labels.
const (
	LabelRent      = "Rent"
	LabelCredit    = "Credit card"
	LabelUtilities = "Utilities"
	LabelTaxes     = "Taxes"
	LabelLoan      = "Loan installment"
)

// Item is one computed obligation and its countdown. Days of 0 means due on
// the probed day. LoanID is set only for loan installments.
type Item struct {
	Label  string       `json:"label"`
	Days   int          `json:"days"`
	Amount ledger.Cents `json:"amount"`
	LoanID string       `json:"loanId,omitempty"`
}

// DaysUntil returns the countdown to the next multiple of period at the given
// day. A day exactly on the period boundary yields 0.
func DaysUntil(day, period int) int {
	m := ((day % period) + period) % period
	if m == 0 {
		return 0
	}
	return period - m
}

// Upcoming returns every applicable obligation with its countdown at the
// given day. Rent is omitted entirely when the player owns their housing.
// Loan items are sorted by id so the projection is stable.
func Upcoming(l *ledger.Ledger, day int) []Item {
	items := []Item{}
	if !l.OwnsHouse() {
		items = append(items, Item{
			Label:  LabelRent,
			Days:   DaysUntil(day, RentPeriod),
			Amount: l.Rent(),
		})
	}
	items = append(items,
		Item{
			Label:  LabelCredit,
			Days:   DaysUntil(day, CreditPeriod),
			Amount: l.Credit.CreditCardBill,
		},
		Item{
			Label:  LabelUtilities,
			Days:   DaysUntil(day, UtilitiesPeriod),
			Amount: l.Utilities(),
		},
		Item{
			Label:  LabelTaxes,
			Days:   DaysUntil(day, TaxesPeriod),
			Amount: l.Taxes(),
		},
	)

	loanIDs := make([]string, 0, len(l.Loans))
	for id := range l.Loans {
		loanIDs = append(loanIDs, id)
	}
	sort.Strings(loanIDs)
	for _, id := range loanIDs {
		loan := l.Loans[id]
		amount := loan.MonthlyPayment
		if amount <= 0 {
			amount = loan.Remaining
		}
		items = append(items, Item{
			Label:  LabelLoan,
			Days:   DaysUntil(day, LoanPeriod),
			Amount: amount,
			LoanID: id,
		})
	}
	return items
}

// DueToday filters Upcoming down to items whose countdown is zero. Items with
// no amount owed (a zero credit card bill) are skipped, since there is
// nothing to settle.
func DueToday(l *ledger.Ledger, day int) []Item {
	due := []Item{}
	for _, item := range Upcoming(l, day) {
		if item.Days != 0 {
			continue
		}
		if item.Amount <= 0 {
			continue
		}
		due = append(due, item)
	}
	return due
}
