package ledger

import (
	"errors"
	"fmt"
	"math"
)

// Cents is the money unit for everything in the simulation. 100 cents = $1.
type Cents int64

const (
	CentsPerDollar = Cents(100)

	// DaysPerMonth is the simulated length of a "month": loan installments,
	// rent and credit card bills all cycle on this period.
	DaysPerMonth = 15

	StarterCheckingCents = 100 * CentsPerDollar

	DefaultRentCents      = 200 * CentsPerDollar
	DefaultUtilitiesCents = 40 * CentsPerDollar
	DefaultTaxesCents     = 100 * CentsPerDollar

	FoodLossPerDay = 2
	// StarvationLimit is the number of consecutive day advances a player may
	// survive with zero food before the next advance kills them.
	StarvationLimit = 5

	// DailyUpkeepCents is deducted from checking every day a player has no car.
	DailyUpkeepCents = 1 * CentsPerDollar
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSelection  = errors.New("account or method not selected")
	ErrLedgerMissing     = errors.New("ledger not found")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvariantBroken   = errors.New("sub-account balances exceed liquid total")
)

// Job is the player's employment category.
type Job string

const (
	JobNone      Job = ""
	JobPartTime  Job = "PartTime"
	JobCompany   Job = "Company"
	JobFreelance Job = "Freelance"
)

// RatePerMinute is the payout rate applied to stored worked minutes.
func (j Job) RatePerMinute() Cents {
	switch j {
	case JobCompany:
		return 200 * CentsPerDollar
	case JobFreelance:
		return 150 * CentsPerDollar
	case JobPartTime:
		return 100 * CentsPerDollar
	default:
		return 0
	}
}

// RequiredMinutes is the per-day minimum worked time for the day to count.
func (j Job) RequiredMinutes() int {
	switch j {
	case JobCompany:
		return 4
	case JobFreelance:
		return 1
	case JobPartTime:
		return 3
	default:
		return 0
	}
}

// PayoutEvery is the day period gating payouts. Part-time work only pays on
// every tenth day; the other jobs pay every qualifying day.
func (j Job) PayoutEvery() int {
	if j == JobPartTime {
		return 10
	}
	return 1
}

// HireChance is the approval probability when applying for the job.
func (j Job) HireChance() float64 {
	switch j {
	case JobCompany:
		return 0.2
	case JobFreelance:
		return 0.4
	case JobPartTime:
		return 1.0
	default:
		return 0
	}
}

func (j Job) Valid() bool {
	switch j {
	case JobPartTime, JobCompany, JobFreelance:
		return true
	}
	return false
}

// LiquidMoney is the player's cash position. Total is authoritative; the
// checking and savings maps are named partitions of it and may sum to less.
type LiquidMoney struct {
	Total           Cents            `json:"total"`
	CheckingAccount map[string]Cents `json:"checkingAccount"`
	SavingsAccount  map[string]Cents `json:"savingsAccount"`
}

// PaymentRecord is one entry of the credit payment history.
type PaymentRecord struct {
	Type   string `json:"type"`
	OnTime *bool  `json:"onTime,omitempty"`
	Amount Cents  `json:"amount"`
	Day    int    `json:"day"`
}

// CreditProfile holds the player's credit state.
type CreditProfile struct {
	CreditLimit        Cents            `json:"creditLimit"`
	CreditCards        map[string]Cents `json:"creditCards"`
	CreditCardBill     Cents            `json:"creditCardBill"`
	CreditScore        *int             `json:"creditScore"`
	LastClosingBalance *Cents           `json:"lastClosingBalance"`
	PaymentHistory     []PaymentRecord  `json:"paymentHistory"`
}

// Loan is a single outstanding loan. Remaining is a lump sum (payments times
// term), not a principal/interest amortization ledger; installment payments
// subtract from it directly.
type Loan struct {
	Amount         Cents   `json:"amount"`
	InterestRate   float64 `json:"interestRate"`
	TermMonths     int     `json:"termMonths"`
	MonthlyPayment Cents   `json:"monthlyPayment"`
	Remaining      Cents   `json:"remaining"`
}

// Ledger is the per-player authoritative game-state record.
type Ledger struct {
	Day          int             `json:"day"`
	Job          Job             `json:"job"`
	JobDone      bool            `json:"jobDone"`
	HoursWorked  int             `json:"hoursWorked"` // worked minutes pending payout
	LiquidMoney  LiquidMoney     `json:"liquidMoney"`
	Credit       CreditProfile   `json:"credit"`
	Loans        map[string]Loan `json:"loans"`
	Food         int             `json:"food"`
	FoodZeroDays int             `json:"foodZeroDays"`
	Housing      string          `json:"housing"`
	Car          bool            `json:"car"`

	// Per-player overrides for the standard due amounts; zero means default.
	RentCents      Cents `json:"rentRate,omitempty"`
	UtilitiesCents Cents `json:"utilitiesRate,omitempty"`
	TaxesCents     Cents `json:"taxesRate,omitempty"`

	SeenLearnHint bool `json:"seenLearnHint"`
}

// New returns the ledger created at signup.
func New() *Ledger {
	return &Ledger{
		Day:     1,
		Job:     JobNone,
		Housing: "rent",
		Food:    0,
		LiquidMoney: LiquidMoney{
			Total:           StarterCheckingCents,
			CheckingAccount: map[string]Cents{"main": StarterCheckingCents},
			SavingsAccount:  map[string]Cents{},
		},
		Credit: CreditProfile{
			CreditCards:    map[string]Cents{},
			PaymentHistory: []PaymentRecord{},
		},
		Loans: map[string]Loan{},
	}
}

// OwnsHouse reports whether rent no longer applies.
func (l *Ledger) OwnsHouse() bool {
	return l.Housing == "house" || l.Housing == "own"
}

// Rent returns the player's rent amount, falling back to the default.
func (l *Ledger) Rent() Cents {
	if l.RentCents > 0 {
		return l.RentCents
	}
	return DefaultRentCents
}

// Utilities returns the utilities amount, falling back to the default.
func (l *Ledger) Utilities() Cents {
	if l.UtilitiesCents > 0 {
		return l.UtilitiesCents
	}
	return DefaultUtilitiesCents
}

// Taxes returns the taxes amount, falling back to the default.
func (l *Ledger) Taxes() Cents {
	if l.TaxesCents > 0 {
		return l.TaxesCents
	}
	return DefaultTaxesCents
}

// SubAccountSum is the combined balance of all checking and savings partitions.
func (l *Ledger) SubAccountSum() Cents {
	var sum Cents
	for _, v := range l.LiquidMoney.CheckingAccount {
		sum += v
	}
	for _, v := range l.LiquidMoney.SavingsAccount {
		sum += v
	}
	return sum
}

// CheckInvariant verifies the partition rule before a mutation is committed:
// sub-accounts never sum past the authoritative total.
func (l *Ledger) CheckInvariant() error {
	if l.SubAccountSum() > l.LiquidMoney.Total {
		return fmt.Errorf("%w: accounts=%d total=%d", ErrInvariantBroken, l.SubAccountSum(), l.LiquidMoney.Total)
	}
	return nil
}

// FirstCheckingKey returns the lexicographically smallest checking partition
// key, or "" when the map is empty. Map iteration order is not stable, and
// loan deposits must land deterministically.
func (l *Ledger) FirstCheckingKey() string {
	first := ""
	for k := range l.LiquidMoney.CheckingAccount {
		if first == "" || k < first {
			first = k
		}
	}
	return first
}

// TotalLoanPrincipal sums the original principals of all outstanding loans.
func (l *Ledger) TotalLoanPrincipal() Cents {
	var sum Cents
	for _, loan := range l.Loans {
		if loan.Amount > 0 {
			sum += loan.Amount
		} else {
			sum += loan.Remaining
		}
	}
	return sum
}

func DollarsToCents(v float64) Cents {
	return Cents(math.Round(v * float64(CentsPerDollar)))
}

func (c Cents) Dollars() float64 {
	return float64(c) / float64(CentsPerDollar)
}
