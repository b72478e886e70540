package faucet

import (
	"fmt"
	"time"
)

// Config is fixed when the engine is built.
type Config struct {
	ClaimAmount   uint64
	Cooldown      time.Duration
	LifetimeLimit uint64
	Owner         string
	// Reserve is the ledger account that funds every claim.
	Reserve string
}

func (c Config) Validate() error {
	switch {
	case c.ClaimAmount == 0:
		return fmt.Errorf("%w: claim amount must be positive", ErrInvalidConfig)
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidConfig)
	case c.LifetimeLimit < c.ClaimAmount:
		return fmt.Errorf("%w: lifetime limit %d below claim amount %d", ErrInvalidConfig, c.LifetimeLimit, c.ClaimAmount)
	case c.Owner == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidConfig)
	case c.Reserve == "":
		return fmt.Errorf("%w: reserve account is required", ErrInvalidConfig)
	case c.Owner == c.Reserve:
		return fmt.Errorf("%w: owner and reserve must differ", ErrInvalidConfig)
	}
	return nil
}
