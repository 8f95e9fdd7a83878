package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigbank/internal/dues"
	"pigbank/internal/ledger"
	"pigbank/internal/store"
)

func rentDue(amount ledger.Cents) dues.Item {
	return dues.Item{Label: dues.LabelRent, Days: 0, Amount: amount}
}

func TestDebitRoundTrip(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 50000
	l.LiquidMoney.CheckingAccount["main"] = 50000

	require.NoError(t, Apply(l, rentDue(20000), MethodDebit, "main"))
	assert.Equal(t, ledger.Cents(30000), l.LiquidMoney.Total)
	assert.Equal(t, ledger.Cents(30000), l.LiquidMoney.CheckingAccount["main"])
	require.NoError(t, l.CheckInvariant())

	require.Len(t, l.Credit.PaymentHistory, 1)
	rec := l.Credit.PaymentHistory[0]
	assert.Equal(t, "rent", rec.Type)
	require.NotNil(t, rec.OnTime)
	assert.True(t, *rec.OnTime)
}

func TestDebitInsufficientTotal(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 1000
	l.LiquidMoney.CheckingAccount["main"] = 1000

	err := Apply(l, rentDue(20000), MethodDebit, "main")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, ledger.Cents(1000), l.LiquidMoney.Total)
	assert.Empty(t, l.Credit.PaymentHistory)
}

func TestDebitInsufficientSubAccount(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 100000
	l.LiquidMoney.CheckingAccount["main"] = 1000

	err := Apply(l, rentDue(20000), MethodDebit, "main")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestDebitRequiresAccount(t *testing.T) {
	l := ledger.New()
	err := Apply(l, rentDue(100), MethodDebit, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidSelection)

	err = Apply(l, rentDue(100), MethodDebit, "nope")
	assert.ErrorIs(t, err, ledger.ErrInvalidSelection)
}

func TestSavingsDraw(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 60000
	l.LiquidMoney.SavingsAccount["emergency"] = 50000

	require.NoError(t, Apply(l, rentDue(20000), MethodSavings, "emergency"))
	assert.Equal(t, ledger.Cents(40000), l.LiquidMoney.Total)
	assert.Equal(t, ledger.Cents(30000), l.LiquidMoney.SavingsAccount["emergency"])
}

func TestCreditChargeGrowsBill(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 0
	l.LiquidMoney.CheckingAccount = map[string]ledger.Cents{}

	require.NoError(t, Apply(l, rentDue(20000), MethodCredit, ""))
	assert.Equal(t, ledger.Cents(20000), l.Credit.CreditCardBill)
	assert.Zero(t, l.LiquidMoney.Total)
}

func TestPayingCardBillFromCashClosesBill(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 50000
	l.LiquidMoney.CheckingAccount["main"] = 50000
	l.Credit.CreditCardBill = 8000

	item := dues.Item{Label: dues.LabelCredit, Days: 0, Amount: 8000}
	require.NoError(t, Apply(l, item, MethodDebit, "main"))
	assert.Zero(t, l.Credit.CreditCardBill)
	assert.Equal(t, ledger.Cents(42000), l.LiquidMoney.Total)
}

func TestLoanInstallmentReducesRemaining(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 100000
	l.LiquidMoney.CheckingAccount["main"] = 100000
	l.Loans["loan-1"] = ledger.Loan{MonthlyPayment: 10662, Remaining: 127944}

	item := dues.Item{Label: dues.LabelLoan, Days: 0, Amount: 10662, LoanID: "loan-1"}
	require.NoError(t, Apply(l, item, MethodDebit, "main"))
	assert.Equal(t, ledger.Cents(127944-10662), l.Loans["loan-1"].Remaining)
	assert.Equal(t, "loan", l.Credit.PaymentHistory[0].Type)
}

func TestFinalInstallmentDeletesLoan(t *testing.T) {
	l := ledger.New()
	l.LiquidMoney.Total = 100000
	l.LiquidMoney.CheckingAccount["main"] = 100000
	l.Loans["loan-1"] = ledger.Loan{MonthlyPayment: 10662, Remaining: 10000}

	item := dues.Item{Label: dues.LabelLoan, Days: 0, Amount: 10662, LoanID: "loan-1"}
	require.NoError(t, Apply(l, item, MethodDebit, "main"))
	assert.NotContains(t, l.Loans, "loan-1")
}

func TestSettleCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed := ledger.New()
	seed.LiquidMoney.Total = 50000
	seed.LiquidMoney.CheckingAccount["main"] = 50000
	require.NoError(t, mem.Create(ctx, "alice", seed))

	committed, err := Settle(ctx, mem, "alice", rentDue(20000), MethodDebit, "main")
	require.NoError(t, err)
	assert.Equal(t, ledger.Cents(30000), committed.LiquidMoney.Total)

	// A failed settlement must leave the stored ledger unchanged.
	_, err = Settle(ctx, mem, "alice", rentDue(900000), MethodDebit, "main")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	after, err := mem.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.Cents(30000), after.LiquidMoney.Total)
	require.Len(t, after.Credit.PaymentHistory, 1)
}
