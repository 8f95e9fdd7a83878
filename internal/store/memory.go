package store

import (
	"context"
	"sort"
	"sync"

	"pigbank/internal/ledger"
)

// Memory is an in-process Ledgers implementation used by tests and local runs.
type Memory struct {
	mu      sync.Mutex
	docs    map[string][]byte
	watches map[string][]chan *ledger.Ledger
}

func NewMemory() *Memory {
	return &Memory{
		docs:    map[string][]byte{},
		watches: map[string][]chan *ledger.Ledger{},
	}
}

func (m *Memory) Get(ctx context.Context, userID string) (*ledger.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[userID]
	if !ok {
		return nil, ledger.ErrLedgerMissing
	}
	return ledger.Decode(raw)
}

func (m *Memory) Create(ctx context.Context, userID string, l *ledger.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[userID]; ok {
		return nil
	}
	raw, err := ledger.Encode(l)
	if err != nil {
		return err
	}
	m.docs[userID] = raw
	m.notifyLocked(userID, raw)
	return nil
}

func (m *Memory) Update(ctx context.Context, userID string, fn func(*ledger.Ledger) error) (*ledger.Ledger, error) {
	return m.lockedUpdate(userID, fn)
}

func (m *Memory) IncrementDay(ctx context.Context, userID string) (int, error) {
	var day int
	_, err := m.lockedUpdate(userID, func(l *ledger.Ledger) error {
		l.Day++
		day = l.Day
		return nil
	})
	return day, err
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, userID)
	return nil
}

func (m *Memory) Watch(ctx context.Context, userID string) (<-chan *ledger.Ledger, error) {
	ch := make(chan *ledger.Ledger, 8)
	m.mu.Lock()
	m.watches[userID] = append(m.watches[userID], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.watches[userID]
		for i, sub := range subs {
			if sub == ch {
				m.watches[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) lockedUpdate(userID string, fn func(*ledger.Ledger) error) (*ledger.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[userID]
	if !ok {
		return nil, ledger.ErrLedgerMissing
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
	m.docs[userID] = next
	m.notifyLocked(userID, next)
	return l, nil
}

func (m *Memory) notifyLocked(userID string, raw []byte) {
	for _, ch := range m.watches[userID] {
		snap, err := ledger.Decode(raw)
		if err != nil {
			continue
		}
		select {
		case ch <- snap:
		default: // slow watcher, drop the snapshot
		}
	}
}
