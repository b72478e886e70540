package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a process-local Ledger. A single mutex covers every balance so no
// reader observes a half-applied transfer.
type Memory struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewMemory creates a ledger with the given opening balances. This is the
// only place tokens come into existence.
func NewMemory(initial map[string]uint64) *Memory {
	balances := make(map[string]uint64, len(initial))
	for account, amount := range initial {
		balances[account] = amount
	}
	return &Memory{balances: balances}
}

func (m *Memory) Transfer(_ context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	have := m.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from, have, amount)
	}
	if from == to {
		return nil
	}
	m.balances[from] = have - amount
	m.balances[to] += amount
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, account string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account], nil
}

// TotalSupply sums every balance.
func (m *Memory) TotalSupply() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total uint64
	for _, amount := range m.balances {
		total += amount
	}
	return total
}
