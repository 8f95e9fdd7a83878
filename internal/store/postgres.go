package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pigbank/internal/ledger"
)

const notifyChannel = "pigbank_ledger_changed"

// Postgres stores each ledger as a single JSONB document keyed by player id.
// Serializable transactions give the optimistic read-modify-write semantics;
// LISTEN/NOTIFY drives the Watch change feed.
type Postgres struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, log: logger}
}

// Init creates the backing table if it does not exist.
func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledgers (
			user_id    text PRIMARY KEY,
			doc        jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: init schema: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, userID string) (*ledger.Ledger, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, `SELECT doc FROM ledgers WHERE user_id = $1`, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, ledger.ErrLedgerMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get ledger: %v", ErrUnavailable, err)
	}
	return ledger.Decode(raw)
}

func (p *Postgres) Create(ctx context.Context, userID string, l *ledger.Ledger) error {
	raw, err := ledger.Encode(l)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO ledgers (user_id, doc)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, raw)
	if err != nil {
		return fmt.Errorf("%w: create ledger: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, userID string, fn func(*ledger.Ledger) error) (*ledger.Ledger, error) {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		l, err := p.updateOnce(ctx, userID, fn)
		if err == nil {
			return l, nil
		}
		if !isSerializationError(err) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			return nil, ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return nil, err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return nil, ErrTxConflict
}

func (p *Postgres) updateOnce(ctx context.Context, userID string, fn func(*ledger.Ledger) error) (*ledger.Ledger, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM ledgers WHERE user_id = $1 FOR UPDATE`, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, ledger.ErrLedgerMissing
	}
	if err != nil {
		return nil, err
	}
	l, err := ledger.Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	next, err := ledger.Encode(l)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE ledgers SET doc = $1, updated_at = now() WHERE user_id = $2
	`, next, userID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (p *Postgres) IncrementDay(ctx context.Context, userID string) (int, error) {
	var day int
	err := p.db.QueryRow(ctx, `
		UPDATE ledgers
		SET doc = jsonb_set(doc, '{day}', to_jsonb(COALESCE((doc->>'day')::int, 0) + 1)),
		    updated_at = now()
		WHERE user_id = $1
		RETURNING (doc->>'day')::int
	`, userID).Scan(&day)
	if err == pgx.ErrNoRows {
		return 0, ledger.ErrLedgerMissing
	}
	if err != nil {
		return 0, fmt.Errorf("%w: increment day: %v", ErrUnavailable, err)
	}
	if _, err := p.db.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, userID); err != nil {
		p.log.Warn("day increment notify failed", "user_id", userID, "err", err)
	}
	return day, nil
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT user_id FROM ledgers ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list ledgers: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, userID string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM ledgers WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: delete ledger: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Watch(ctx context.Context, userID string) (<-chan *ledger.Ledger, error) {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire watch conn: %v", ErrUnavailable, err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: listen: %v", ErrUnavailable, err)
	}

	ch := make(chan *ledger.Ledger, 8)
	go func() {
		defer close(ch)
		defer conn.Release()
		for {
			note, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Warn("ledger watch ended", "user_id", userID, "err", err)
				}
				return
			}
			if note.Payload != userID {
				continue
			}
			snap, err := p.Get(ctx, userID)
			if err != nil {
				if errors.Is(err, ledger.ErrLedgerMissing) {
					return
				}
				continue
			}
			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
