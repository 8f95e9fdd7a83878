package credit

import (
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"pigbank/internal/ledger"
)

const (
	cardLimitMinCents  = 100 * ledger.CentsPerDollar
	cardLimitSpanCents = 1900 * ledger.CentsPerDollar
)

// CardDecision is the outcome of a credit card application.
type CardDecision struct {
	Approved bool         `json:"approved"`
	Chance   float64      `json:"chance"`
	CardID   string       `json:"cardId,omitempty"`
	Limit    ledger.Cents `json:"limit,omitempty"`
}

// Issuer draws card approvals. One shared instance per process; the mutex
// guards the rand source.
type Issuer struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewIssuer() *Issuer {
	return &Issuer{rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))}
}

// NewIssuerWithSource returns an issuer with a fixed source for tests.
func NewIssuerWithSource(src mathrand.Source) *Issuer {
	return &Issuer{rand: mathrand.New(src)}
}

// ApplyForCard mutates the ledger with a newly issued card on approval. The
// approval chance is the stored score normalized over the 300-850 band, so a
// player with no computed score is always declined. Intended to run inside a
// store transaction.
func (i *Issuer) ApplyForCard(l *ledger.Ledger) CardDecision {
	score := 0
	if l.Credit.CreditScore != nil {
		score = *l.Credit.CreditScore
	}
	chance := float64(score-ScoreFloor) / scoreRange
	if chance < 0 {
		chance = 0
	}
	if chance > 1 {
		chance = 1
	}

	i.mu.Lock()
	draw := i.rand.Float64()
	limit := cardLimitMinCents + ledger.Cents(i.rand.Int63n(int64(cardLimitSpanCents)))
	i.mu.Unlock()

	if draw >= chance {
		return CardDecision{Approved: false, Chance: chance}
	}

	// Dollar-granular limits read better on statements.
	limit -= limit % ledger.CentsPerDollar

	id := fmt.Sprintf("card-%s", uuid.NewString()[:8])
	if l.Credit.CreditCards == nil {
		l.Credit.CreditCards = map[string]ledger.Cents{}
	}
	l.Credit.CreditCards[id] = limit
	l.Credit.CreditLimit += limit
	return CardDecision{Approved: true, Chance: chance, CardID: id, Limit: limit}
}
