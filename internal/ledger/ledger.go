// Package ledger holds fungible token balances keyed by account address.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Ledger moves tokens between accounts. Transfer is all-or-nothing: either
// both balances change or neither does.
type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
	BalanceOf(ctx context.Context, account string) (uint64, error)
}
