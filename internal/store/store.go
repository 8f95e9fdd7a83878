package store

import (
	"context"
	"errors"

	"pigbank/internal/ledger"
)

var (
	// ErrTxConflict is returned when a transactional update keeps colliding
	// with concurrent writers after all internal retries are spent.
	ErrTxConflict = errors.New("transaction conflict: too many retries")
	// ErrUnavailable wraps connectivity failures talking to the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

// Ledgers is the document store holding one ledger record per player. All
// mutation goes through Update so a write never depends on a read taken
// outside the transaction.
type Ledgers interface {
	// Get returns the player's ledger, or ledger.ErrLedgerMissing.
	Get(ctx context.Context, userID string) (*ledger.Ledger, error)

	// Create writes the initial ledger for a new player. Creating over an
	// existing record is a no-op so repeated signups stay idempotent.
	Create(ctx context.Context, userID string, l *ledger.Ledger) error

	// Update runs fn against the current ledger inside one atomic
	// read-modify-write. Conflicting concurrent updates are retried with
	// backoff; an error returned by fn aborts without retry and is passed
	// through. The committed ledger is returned.
	Update(ctx context.Context, userID string, fn func(*ledger.Ledger) error) (*ledger.Ledger, error)

	// IncrementDay bumps the day counter atomically without rewriting the
	// rest of the document, and returns the new day value.
	IncrementDay(ctx context.Context, userID string) (int, error)

	// Delete removes the player's record. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, userID string) error

	// List returns the ids of all stored ledgers, for background sweeps.
	List(ctx context.Context) ([]string, error)

	// Watch streams ledger snapshots for the player until ctx is done. The
	// stream is a read-only projection: snapshots may trail a transaction
	// the same client just committed and must not feed decisions that write
	// back without re-reading inside Update.
	Watch(ctx context.Context, userID string) (<-chan *ledger.Ledger, error)
}
