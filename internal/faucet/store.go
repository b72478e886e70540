package faucet

import (
	"context"
	"sync"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/ledger"
	"github.com/google/uuid"
)

// Record is the per-account claim bookkeeping. The zero value means the
// account has never claimed.
type Record struct {
	Account      string
	LastClaimAt  time.Time
	TotalClaimed uint64
	Claims       uint64
}

func (r Record) HasClaimed() bool {
	return r.Claims > 0
}

// ClaimEvent is one successful dispensation.
type ClaimEvent struct {
	ID           string
	Account      string
	Amount       uint64
	TotalClaimed uint64
	ClaimedAt    time.Time
}

// Store persists claim records, admin state and balances. Reads outside
// Atomically see committed state only.
type Store interface {
	ledger.Ledger
	Record(ctx context.Context, account string) (Record, error)
	History(ctx context.Context, account string, limit int) ([]ClaimEvent, error)
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
	// Atomically runs fn so that every mutation made through tx commits
	// together, or none does when fn returns an error.
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the mutation surface available inside Store.Atomically.
type Tx interface {
	Paused(ctx context.Context) (bool, error)
	Record(ctx context.Context, account string) (Record, error)
	Transfer(ctx context.Context, from, to string, amount uint64) error
	SaveClaim(ctx context.Context, record Record, amount uint64) error
}

// MemoryStore keeps faucet state in process over a ledger.Memory.
type MemoryStore struct {
	ledger *ledger.Memory

	mu      sync.RWMutex
	records map[string]Record
	events  map[string][]ClaimEvent
	paused  bool
}

func NewMemoryStore(l *ledger.Memory) *MemoryStore {
	return &MemoryStore{
		ledger:  l,
		records: make(map[string]Record),
		events:  make(map[string][]ClaimEvent),
	}
}

func (s *MemoryStore) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return s.ledger.Transfer(ctx, from, to, amount)
}

func (s *MemoryStore) BalanceOf(ctx context.Context, account string) (uint64, error) {
	return s.ledger.BalanceOf(ctx, account)
}

func (s *MemoryStore) Record(_ context.Context, account string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[account]
	if !ok {
		return Record{Account: account}, nil
	}
	return record, nil
}

func (s *MemoryStore) History(_ context.Context, account string, limit int) ([]ClaimEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[account]
	events := make([]ClaimEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if limit > 0 && len(events) == limit {
			break
		}
		events = append(events, stored[i])
	}
	return events, nil
}

func (s *MemoryStore) Paused(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused, nil
}

func (s *MemoryStore) SetPaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
	return nil
}

// Atomically relies on the engine's per-account lock for isolation. The
// ledger transfer is the only fallible mutation and SaveClaim cannot fail,
// so a transfer error leaves nothing to undo.
func (s *MemoryStore) Atomically(_ context.Context, fn func(tx Tx) error) error {
	return fn(memoryTx{s})
}

type memoryTx struct {
	s *MemoryStore
}

func (tx memoryTx) Paused(ctx context.Context) (bool, error) {
	return tx.s.Paused(ctx)
}

func (tx memoryTx) Record(ctx context.Context, account string) (Record, error) {
	return tx.s.Record(ctx, account)
}

func (tx memoryTx) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return tx.s.ledger.Transfer(ctx, from, to, amount)
}

func (tx memoryTx) SaveClaim(_ context.Context, record Record, amount uint64) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	tx.s.records[record.Account] = record
	tx.s.events[record.Account] = append(tx.s.events[record.Account], ClaimEvent{
		ID:           uuid.NewString(),
		Account:      record.Account,
		Amount:       amount,
		TotalClaimed: record.TotalClaimed,
		ClaimedAt:    record.LastClaimAt,
	})
	return nil
}
