package faucet

import (
	"errors"
	"fmt"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/ledger"
)

var (
	ErrFaucetPaused          = errors.New("faucet is paused")
	ErrCooldownActive        = errors.New("cooldown period not elapsed")
	ErrLifetimeLimitExceeded = errors.New("lifetime limit exceeded")
	ErrInsufficientReserve   = errors.New("faucet reserve is insufficient")
	ErrInsufficientBalance   = ledger.ErrInsufficientBalance
	ErrUnauthorized          = errors.New("caller is not the faucet owner")
	ErrInvalidAccount        = errors.New("invalid account")
	ErrInvalidAmount         = ledger.ErrInvalidAmount
	ErrInvalidConfig         = errors.New("invalid faucet config")
)

// CooldownError reports how long an account still has to wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s remaining", ErrCooldownActive, e.Remaining)
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}
