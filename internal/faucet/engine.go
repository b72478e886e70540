// Package faucet decides whether an account may claim tokens and keeps the
// per-account claim bookkeeping.
//
// Every operation takes the logical time explicitly; the engine never reads
// a clock. Policy checks run in a fixed order: pause, lifetime limit,
// cooldown. Claims for one account are serialized by a per-account lock,
// claims for different accounts are not. Admin operations exclude every
// claim through stateMu, so once Pause returns no claim can dispense.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

type ClaimResult struct {
	Account         string
	AmountDispensed uint64
	TotalClaimed    uint64
	ClaimedAt       time.Time
}

// Eligibility is the answer to "could this account claim right now".
// Reason is nil when Eligible is true.
type Eligibility struct {
	Eligible bool
	Reason   error
}

type AccountStatus struct {
	Account            string
	Balance            uint64
	TotalClaimed       uint64
	Claims             uint64
	LastClaimAt        time.Time
	RemainingAllowance uint64
	TimeUntilEligible  time.Duration
	Eligibility
}

type Status struct {
	Paused         bool
	ClaimAmount    uint64
	Cooldown       time.Duration
	LifetimeLimit  uint64
	Owner          string
	Reserve        string
	ReserveBalance uint64
}

type Engine struct {
	cfg     Config
	store   Store
	locks   *keyLocker
	stateMu sync.RWMutex
	logger  *log.Logger
}

func NewEngine(cfg Config, store Store, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		locks:  newKeyLocker(),
		logger: logger,
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Claim dispenses ClaimAmount from the reserve to account if policy allows
// it at logical time now. On any error no balance or record has changed.
func (e *Engine) Claim(ctx context.Context, account string, now time.Time) (ClaimResult, error) {
	account = strings.TrimSpace(account)
	if err := e.validateClaimant(account); err != nil {
		return ClaimResult{}, err
	}
	now = logicalTime(now)

	// Account lock first, then the shared state lock: a claim queued on its
	// account never holds stateMu, so Pause is not blocked behind it.
	unlock := e.locks.Lock(account)
	defer unlock()
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	var result ClaimResult
	err := e.store.Atomically(ctx, func(tx Tx) error {
		paused, err := tx.Paused(ctx)
		if err != nil {
			return fmt.Errorf("read pause flag: %w", err)
		}
		if paused {
			return ErrFaucetPaused
		}

		record, err := tx.Record(ctx, account)
		if err != nil {
			return fmt.Errorf("load claim record: %w", err)
		}
		if err := e.checkPolicy(record, now); err != nil {
			return err
		}

		if err := tx.Transfer(ctx, e.cfg.Reserve, account, e.cfg.ClaimAmount); err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				return ErrInsufficientReserve
			}
			return fmt.Errorf("transfer from reserve: %w", err)
		}

		record.Account = account
		record.LastClaimAt = now
		record.TotalClaimed += e.cfg.ClaimAmount
		record.Claims++
		if err := tx.SaveClaim(ctx, record, e.cfg.ClaimAmount); err != nil {
			return fmt.Errorf("save claim record: %w", err)
		}

		result = ClaimResult{
			Account:         account,
			AmountDispensed: e.cfg.ClaimAmount,
			TotalClaimed:    record.TotalClaimed,
			ClaimedAt:       now,
		}
		return nil
	})
	if err != nil {
		if !isPolicyError(err) && !errors.Is(err, ErrFaucetPaused) {
			e.logger.Printf("Claim for %s failed: %v", account, err)
		}
		return ClaimResult{}, err
	}

	e.logger.Printf("Dispensed %d to %s (total claimed %d)", result.AmountDispensed, account, result.TotalClaimed)
	return result, nil
}

// CanClaim evaluates the same checks as Claim without side effects.
func (e *Engine) CanClaim(ctx context.Context, account string, now time.Time) (Eligibility, error) {
	account = strings.TrimSpace(account)
	if err := e.validateClaimant(account); err != nil {
		return Eligibility{}, err
	}
	now = logicalTime(now)
	paused, err := e.store.Paused(ctx)
	if err != nil {
		return Eligibility{}, fmt.Errorf("read pause flag: %w", err)
	}
	if paused {
		return Eligibility{Reason: ErrFaucetPaused}, nil
	}
	record, err := e.store.Record(ctx, account)
	if err != nil {
		return Eligibility{}, fmt.Errorf("load claim record: %w", err)
	}
	if err := e.checkPolicy(record, now); err != nil {
		return Eligibility{Reason: err}, nil
	}
	return Eligibility{Eligible: true}, nil
}

func (e *Engine) RemainingAllowance(ctx context.Context, account string) (uint64, error) {
	record, err := e.store.Record(ctx, strings.TrimSpace(account))
	if err != nil {
		return 0, fmt.Errorf("load claim record: %w", err)
	}
	return e.remaining(record), nil
}

func (e *Engine) TimeUntilEligible(ctx context.Context, account string, now time.Time) (time.Duration, error) {
	record, err := e.store.Record(ctx, strings.TrimSpace(account))
	if err != nil {
		return 0, fmt.Errorf("load claim record: %w", err)
	}
	return e.wait(record, logicalTime(now)), nil
}

func (e *Engine) IsPaused(ctx context.Context) (bool, error) {
	return e.store.Paused(ctx)
}

func (e *Engine) BalanceOf(ctx context.Context, account string) (uint64, error) {
	return e.store.BalanceOf(ctx, strings.TrimSpace(account))
}

func (e *Engine) History(ctx context.Context, account string, limit int) ([]ClaimEvent, error) {
	return e.store.History(ctx, strings.TrimSpace(account), limit)
}

// AccountStatus gathers everything a client needs to render one account.
func (e *Engine) AccountStatus(ctx context.Context, account string, now time.Time) (AccountStatus, error) {
	account = strings.TrimSpace(account)
	now = logicalTime(now)
	eligibility, err := e.CanClaim(ctx, account, now)
	if err != nil {
		return AccountStatus{}, err
	}
	record, err := e.store.Record(ctx, account)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("load claim record: %w", err)
	}
	balance, err := e.store.BalanceOf(ctx, account)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("read balance: %w", err)
	}
	return AccountStatus{
		Account:            account,
		Balance:            balance,
		TotalClaimed:       record.TotalClaimed,
		Claims:             record.Claims,
		LastClaimAt:        record.LastClaimAt,
		RemainingAllowance: e.remaining(record),
		TimeUntilEligible:  e.wait(record, now),
		Eligibility:        eligibility,
	}, nil
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	paused, err := e.store.Paused(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read pause flag: %w", err)
	}
	reserve, err := e.store.BalanceOf(ctx, e.cfg.Reserve)
	if err != nil {
		return Status{}, fmt.Errorf("read reserve balance: %w", err)
	}
	return Status{
		Paused:         paused,
		ClaimAmount:    e.cfg.ClaimAmount,
		Cooldown:       e.cfg.Cooldown,
		LifetimeLimit:  e.cfg.LifetimeLimit,
		Owner:          e.cfg.Owner,
		Reserve:        e.cfg.Reserve,
		ReserveBalance: reserve,
	}, nil
}

// Pause stops all claims. Pausing a paused faucet is a no-op.
func (e *Engine) Pause(ctx context.Context, caller string) error {
	return e.setPaused(ctx, caller, true)
}

// Unpause resumes claims. Unpausing a running faucet is a no-op.
func (e *Engine) Unpause(ctx context.Context, caller string) error {
	return e.setPaused(ctx, caller, false)
}

// WithdrawReserve moves amount from the reserve to the owner.
func (e *Engine) WithdrawReserve(ctx context.Context, caller string, amount uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	err := e.store.Atomically(ctx, func(tx Tx) error {
		return tx.Transfer(ctx, e.cfg.Reserve, e.cfg.Owner, amount)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return err
		}
		e.logger.Printf("Reserve withdrawal of %d failed: %v", amount, err)
		return fmt.Errorf("withdraw reserve: %w", err)
	}
	e.logger.Printf("Owner %s withdrew %d from reserve", e.cfg.Owner, amount)
	return nil
}

func (e *Engine) setPaused(ctx context.Context, caller string, paused bool) error {
	if err := e.authorize(caller); err != nil {
		return err
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	current, err := e.store.Paused(ctx)
	if err != nil {
		return fmt.Errorf("read pause flag: %w", err)
	}
	if current == paused {
		return nil
	}
	if err := e.store.SetPaused(ctx, paused); err != nil {
		e.logger.Printf("Failed to set paused=%t: %v", paused, err)
		return fmt.Errorf("write pause flag: %w", err)
	}
	e.logger.Printf("Faucet paused=%t by %s", paused, caller)
	return nil
}

func (e *Engine) authorize(caller string) error {
	if strings.TrimSpace(caller) != e.cfg.Owner {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) validateClaimant(account string) error {
	if account == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidAccount)
	}
	if account == e.cfg.Reserve {
		return fmt.Errorf("%w: reserve account cannot claim", ErrInvalidAccount)
	}
	return nil
}

// checkPolicy applies the lifetime check before the cooldown check so an
// exhausted account always reports LifetimeLimitExceeded.
func (e *Engine) checkPolicy(record Record, now time.Time) error {
	if record.TotalClaimed > e.cfg.LifetimeLimit-e.cfg.ClaimAmount {
		return ErrLifetimeLimitExceeded
	}
	if wait := e.wait(record, now); wait > 0 {
		return &CooldownError{Remaining: wait}
	}
	return nil
}

func (e *Engine) remaining(record Record) uint64 {
	if record.TotalClaimed >= e.cfg.LifetimeLimit {
		return 0
	}
	return e.cfg.LifetimeLimit - record.TotalClaimed
}

// wait is max(0, cooldown - (now - lastClaim)). A now earlier than the last
// claim counts as still cooling down.
func (e *Engine) wait(record Record, now time.Time) time.Duration {
	if !record.HasClaimed() {
		return 0
	}
	elapsed := now.Sub(record.LastClaimAt)
	if elapsed >= e.cfg.Cooldown {
		return 0
	}
	return e.cfg.Cooldown - elapsed
}

// logicalTime truncates to microseconds, the precision postgres timestamptz
// keeps, so every store compares the same instants.
func logicalTime(now time.Time) time.Time {
	return now.Truncate(time.Microsecond)
}

func isPolicyError(err error) bool {
	return errors.Is(err, ErrCooldownActive) || errors.Is(err, ErrLifetimeLimitExceeded)
}
