package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedgerDefaults(t *testing.T) {
	l := New()
	assert.Equal(t, 1, l.Day)
	assert.Equal(t, JobNone, l.Job)
	assert.Equal(t, "rent", l.Housing)
	assert.Equal(t, StarterCheckingCents, l.LiquidMoney.Total)
	assert.Equal(t, StarterCheckingCents, l.LiquidMoney.CheckingAccount["main"])
	assert.NoError(t, l.CheckInvariant())
}

func TestCheckInvariant(t *testing.T) {
	l := New()
	l.LiquidMoney.SavingsAccount["vacation"] = 1
	err := l.CheckInvariant()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantBroken)

	l.LiquidMoney.Total += 1
	assert.NoError(t, l.CheckInvariant())
}

func TestDueOverridesFallBackToDefaults(t *testing.T) {
	l := New()
	assert.Equal(t, DefaultRentCents, l.Rent())
	assert.Equal(t, DefaultUtilitiesCents, l.Utilities())
	assert.Equal(t, DefaultTaxesCents, l.Taxes())

	l.RentCents = 350 * CentsPerDollar
	l.UtilitiesCents = 25 * CentsPerDollar
	l.TaxesCents = 80 * CentsPerDollar
	assert.Equal(t, Cents(35000), l.Rent())
	assert.Equal(t, Cents(2500), l.Utilities())
	assert.Equal(t, Cents(8000), l.Taxes())
}

func TestOwnsHouse(t *testing.T) {
	l := New()
	assert.False(t, l.OwnsHouse())
	l.Housing = "house"
	assert.True(t, l.OwnsHouse())
	l.Housing = "own"
	assert.True(t, l.OwnsHouse())
}

func TestFirstCheckingKeyIsDeterministic(t *testing.T) {
	l := New()
	l.LiquidMoney.CheckingAccount = map[string]Cents{
		"zeta": 10, "main": 20, "alpha": 30,
	}
	assert.Equal(t, "alpha", l.FirstCheckingKey())

	l.LiquidMoney.CheckingAccount = map[string]Cents{}
	assert.Equal(t, "", l.FirstCheckingKey())
}

func TestJobParameters(t *testing.T) {
	assert.Equal(t, Cents(20000), JobCompany.RatePerMinute())
	assert.Equal(t, Cents(15000), JobFreelance.RatePerMinute())
	assert.Equal(t, Cents(10000), JobPartTime.RatePerMinute())

	assert.Equal(t, 4, JobCompany.RequiredMinutes())
	assert.Equal(t, 1, JobFreelance.RequiredMinutes())
	assert.Equal(t, 3, JobPartTime.RequiredMinutes())

	assert.Equal(t, 10, JobPartTime.PayoutEvery())
	assert.Equal(t, 1, JobCompany.PayoutEvery())
	assert.Equal(t, 1, JobFreelance.PayoutEvery())

	assert.False(t, JobNone.Valid())
	assert.False(t, Job("Astronaut").Valid())
	assert.True(t, JobFreelance.Valid())
}

func TestParseJob(t *testing.T) {
	assert.Equal(t, JobPartTime, ParseJob("parttime"))
	assert.Equal(t, JobPartTime, ParseJob(" Part-Time "))
	assert.Equal(t, JobCompany, ParseJob("COMPANY"))
	assert.Equal(t, JobFreelance, ParseJob("freelance"))
	assert.Equal(t, JobNone, ParseJob("plumber"))
	assert.Equal(t, JobNone, ParseJob(""))
}

func TestDecodeModernDocument(t *testing.T) {
	raw := []byte(`{
		"day": 31,
		"job": "Company",
		"jobDone": true,
		"hoursWorked": 7,
		"liquidMoney": {
			"total": 123456,
			"checkingAccount": {"main": 100000},
			"savingsAccount": {"rainy": 20000}
		},
		"credit": {
			"creditLimit": 50000,
			"creditCards": {"card-1a2b3c4d": 50000},
			"creditCardBill": 1200,
			"creditScore": 710,
			"paymentHistory": [
				{"type": "rent", "onTime": true, "amount": 20000, "day": 15}
			]
		},
		"loans": {
			"loan-deadbeef": {
				"amount": 120000, "interestRate": 0.08, "termMonths": 12,
				"monthlyPayment": 10440, "remaining": 62640
			}
		},
		"food": 4,
		"housing": "rent",
		"car": true
	}`)
	l, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 31, l.Day)
	assert.Equal(t, JobCompany, l.Job)
	assert.True(t, l.JobDone)
	assert.Equal(t, 7, l.HoursWorked)
	assert.Equal(t, Cents(123456), l.LiquidMoney.Total)
	assert.Equal(t, Cents(20000), l.LiquidMoney.SavingsAccount["rainy"])
	assert.Equal(t, Cents(1200), l.Credit.CreditCardBill)
	require.NotNil(t, l.Credit.CreditScore)
	assert.Equal(t, 710, *l.Credit.CreditScore)
	require.Len(t, l.Credit.PaymentHistory, 1)
	require.NotNil(t, l.Credit.PaymentHistory[0].OnTime)
	assert.True(t, *l.Credit.PaymentHistory[0].OnTime)
	assert.Equal(t, Cents(62640), l.Loans["loan-deadbeef"].Remaining)
	assert.True(t, l.Car)
}

func TestDecodeLegacyShapes(t *testing.T) {
	// Oldest clients wrote a flat checkingAccount number, string-typed
	// numerics, lowercase-b bill casing, and no liquidMoney total.
	raw := []byte(`{
		"day": "12",
		"job": "part-time",
		"checkingAccount": 4200,
		"credit": {
			"creditCardbill": "777",
			"creditCards": {}
		},
		"hasCar": "yes",
		"food": "3"
	}`)
	l, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 12, l.Day)
	assert.Equal(t, JobPartTime, l.Job)
	assert.Equal(t, Cents(4200), l.LiquidMoney.Total)
	assert.Equal(t, Cents(4200), l.LiquidMoney.CheckingAccount["main"])
	assert.Equal(t, Cents(777), l.Credit.CreditCardBill)
	assert.Nil(t, l.Credit.CreditScore)
	assert.True(t, l.Car)
	assert.Equal(t, 3, l.Food)
	assert.Equal(t, "rent", l.Housing)
}

func TestDecodeSumsTotalWhenMissing(t *testing.T) {
	raw := []byte(`{
		"day": 2,
		"liquidMoney": {
			"checkingAccount": {"main": 5000, "bills": 1000},
			"savingsAccount": {"goal": 2500}
		}
	}`)
	l, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Cents(8500), l.LiquidMoney.Total)
	assert.NoError(t, l.CheckInvariant())
}

func TestDecodeLoanRemainingFallback(t *testing.T) {
	raw := []byte(`{
		"day": 5,
		"loans": {
			"loan-cafe0001": {"monthlyPayment": 3000, "termMonths": 6}
		}
	}`)
	l, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Cents(18000), l.Loans["loan-cafe0001"].Remaining)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	l := New()
	l.Day = 45
	l.Job = JobFreelance
	l.Food = 6
	score := 688
	l.Credit.CreditScore = &score
	closing := Cents(900)
	l.Credit.LastClosingBalance = &closing

	raw, err := Encode(l)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, l.Day, got.Day)
	assert.Equal(t, l.Job, got.Job)
	assert.Equal(t, l.Food, got.Food)
	require.NotNil(t, got.Credit.CreditScore)
	assert.Equal(t, 688, *got.Credit.CreditScore)
	require.NotNil(t, got.Credit.LastClosingBalance)
	assert.Equal(t, Cents(900), *got.Credit.LastClosingBalance)
}

func TestDollarsToCents(t *testing.T) {
	assert.Equal(t, Cents(12345), DollarsToCents(123.45))
	assert.Equal(t, Cents(100), DollarsToCents(0.999))
	assert.InDelta(t, 1.5, Cents(150).Dollars(), 1e-9)
}
