package credit

import (
	mathrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigbank/internal/ledger"
)

func TestScoreAlwaysWithinBounds(t *testing.T) {
	onTime := true
	late := false
	closing := ledger.Cents(500000)
	cases := []*ledger.Ledger{
		ledger.New(),
		{Day: 1},
		{Day: 10000, Credit: ledger.CreditProfile{CreditLimit: 1}},
		{
			Day: 2000,
			Credit: ledger.CreditProfile{
				CreditLimit:        200000,
				CreditCardBill:     10_000_000,
				LastClosingBalance: &closing,
				PaymentHistory: []ledger.PaymentRecord{
					{Type: "rent", OnTime: &onTime},
					{Type: "loan", OnTime: &late},
					{Type: "credit"},
				},
			},
			Loans: map[string]ledger.Loan{
				"a": {Amount: 50_000_000},
			},
		},
	}
	for _, l := range cases {
		got := Score(l)
		assert.GreaterOrEqual(t, got, ScoreFloor)
		assert.LessOrEqual(t, got, ScoreCeiling)
	}
}

func TestScoreFreshLedger(t *testing.T) {
	l := ledger.New()
	// No credit limit means no utilization; no history on day 1 means a zero
	// payment ratio over the one expected payment.
	got := Score(l)
	assert.Equal(t, 548, got) // 300 + (0.25 + 0.20)*550, rounded
}

func TestScorePrefersClosingBalance(t *testing.T) {
	l := ledger.New()
	l.Credit.CreditLimit = 1000 * ledger.CentsPerDollar
	l.Credit.CreditCardBill = 1000 * ledger.CentsPerDollar

	maxed := Score(l)
	zero := ledger.Cents(0)
	l.Credit.LastClosingBalance = &zero
	assert.Greater(t, Score(l), maxed)
}

func TestScoreLatePaymentsDrag(t *testing.T) {
	l := ledger.New()
	l.Day = 30
	onTime := true
	l.Credit.PaymentHistory = []ledger.PaymentRecord{
		{Type: "rent", OnTime: &onTime},
		{Type: "rent", OnTime: &onTime},
	}
	full := Score(l)

	late := false
	l.Credit.PaymentHistory[1].OnTime = &late
	assert.Less(t, Score(l), full)
}

func TestEffectiveScoreDefaults(t *testing.T) {
	l := ledger.New()
	assert.Equal(t, 600, EffectiveScore(l))
	s := 720
	l.Credit.CreditScore = &s
	assert.Equal(t, 720, EffectiveScore(l))
}

func TestRefreshStoresScore(t *testing.T) {
	l := ledger.New()
	got := Refresh(l)
	require.NotNil(t, l.Credit.CreditScore)
	assert.Equal(t, got, *l.Credit.CreditScore)
}

func TestApplyForCardDeclinedWithoutScore(t *testing.T) {
	issuer := NewIssuerWithSource(mathrand.NewSource(1))
	l := ledger.New()
	decision := issuer.ApplyForCard(l)
	assert.False(t, decision.Approved)
	assert.Zero(t, decision.Chance)
	assert.Empty(t, l.Credit.CreditCards)
}

func TestApplyForCardApprovalGrowsLimit(t *testing.T) {
	issuer := NewIssuerWithSource(mathrand.NewSource(1))
	l := ledger.New()
	perfect := ScoreCeiling
	l.Credit.CreditScore = &perfect

	// A perfect score approves on any draw.
	decision := issuer.ApplyForCard(l)
	require.True(t, decision.Approved)
	require.NotEmpty(t, decision.CardID)
	assert.GreaterOrEqual(t, decision.Limit, ledger.Cents(100*ledger.CentsPerDollar))
	assert.LessOrEqual(t, decision.Limit, ledger.Cents(2000*ledger.CentsPerDollar))
	assert.Equal(t, decision.Limit, l.Credit.CreditCards[decision.CardID])
	assert.Equal(t, decision.Limit, l.Credit.CreditLimit)
	assert.Zero(t, decision.Limit%ledger.CentsPerDollar)
}
