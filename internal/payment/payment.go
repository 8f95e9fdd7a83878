// Package payment settles due items against a funding source.
package payment

import (
	"context"
	"fmt"

	"pigbank/internal/dues"
	"pigbank/internal/ledger"
	"pigbank/internal/store"
)

// Method is the funding source for a settlement.
type Method string

const (
	MethodDebit   Method = "debit"
	MethodCredit  Method = "credit"
	MethodSavings Method = "savings"
)

func (m Method) Valid() bool {
	switch m {
	case MethodDebit, MethodCredit, MethodSavings:
		return true
	}
	return false
}

// Apply settles one due item against the ledger in place. Debit and savings
// settlements need a sub-account key and fail when either the authoritative
// total or the named sub-account cannot cover the amount. Credit settlements
// add to the card bill unconditionally. The partition invariant is checked
// before returning; callers run this inside a store transaction so a failure
// aborts the whole write.
func Apply(l *ledger.Ledger, item dues.Item, method Method, accountKey string) error {
	if !method.Valid() {
		return fmt.Errorf("%w: unknown method %q", ledger.ErrInvalidSelection, method)
	}
	if item.Amount <= 0 {
		return fmt.Errorf("%w: nothing owed for %q", ledger.ErrInvalidSelection, item.Label)
	}

	switch method {
	case MethodDebit, MethodSavings:
		if accountKey == "" {
			return fmt.Errorf("%w: no account chosen", ledger.ErrInvalidSelection)
		}
		accounts := l.LiquidMoney.CheckingAccount
		if method == MethodSavings {
			accounts = l.LiquidMoney.SavingsAccount
		}
		balance, ok := accounts[accountKey]
		if !ok {
			return fmt.Errorf("%w: account %q does not exist", ledger.ErrInvalidSelection, accountKey)
		}
		if l.LiquidMoney.Total < item.Amount || balance < item.Amount {
			return fmt.Errorf("%w: %s needs %d cents", ledger.ErrInsufficientFunds, item.Label, item.Amount)
		}
		l.LiquidMoney.Total -= item.Amount
		accounts[accountKey] = balance - item.Amount

		// Paying the card bill from cash closes out the bill itself.
		if item.Label == dues.LabelCredit {
			l.Credit.CreditCardBill -= item.Amount
			if l.Credit.CreditCardBill < 0 {
				l.Credit.CreditCardBill = 0
			}
		}
	case MethodCredit:
		l.Credit.CreditCardBill += item.Amount
	}

	if item.LoanID != "" {
		loan, ok := l.Loans[item.LoanID]
		if ok {
			loan.Remaining -= item.Amount
			if loan.Remaining <= 0 {
				delete(l.Loans, item.LoanID)
			} else {
				l.Loans[item.LoanID] = loan
			}
		}
	}

	onTime := item.Days == 0
	l.Credit.PaymentHistory = append(l.Credit.PaymentHistory, ledger.PaymentRecord{
		Type:   historyType(item),
		OnTime: &onTime,
		Amount: item.Amount,
		Day:    l.Day,
	})

	return l.CheckInvariant()
}

// Settle runs Apply as one atomic read-modify-write against the store and
// returns the committed ledger.
func Settle(ctx context.Context, ledgers store.Ledgers, userID string, item dues.Item, method Method, accountKey string) (*ledger.Ledger, error) {
	return ledgers.Update(ctx, userID, func(l *ledger.Ledger) error {
		return Apply(l, item, method, accountKey)
	})
}

func historyType(item dues.Item) string {
	if item.LoanID != "" {
		return "loan"
	}
	switch item.Label {
	case dues.LabelRent:
		return "rent"
	case dues.LabelCredit:
		return "credit"
	case dues.LabelUtilities:
		return "utilities"
	case dues.LabelTaxes:
		return "taxes"
	default:
		return "other"
	}
}
