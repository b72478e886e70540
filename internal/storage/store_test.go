package storage

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/ledger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	owner   = "soar1owner"
	reserve = "soar1reserve"
	alice   = "soar1alice"
)

func newTestStore(t *testing.T, funding uint64) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "faucet.db")), GormConfig(nil))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))
	seeded, err := s.Seed(context.Background(), owner, reserve, funding)
	require.NoError(t, err)
	require.True(t, seeded)
	return s
}

func newTestEngine(t *testing.T, s *Store, cooldown time.Duration) *faucet.Engine {
	t.Helper()
	e, err := faucet.NewEngine(faucet.Config{
		ClaimAmount:   10,
		Cooldown:      cooldown,
		LifetimeLimit: 100,
		Owner:         owner,
		Reserve:       reserve,
	}, s, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return e
}

func TestSeedFundsReserveOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)

	seeded, err := s.Seed(ctx, owner, reserve, 1000)
	require.NoError(t, err)
	assert.False(t, seeded)

	balance, err := s.BalanceOf(ctx, reserve)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), balance)
}

func TestTransferIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 50)

	require.NoError(t, s.Transfer(ctx, reserve, alice, 20))
	require.NoError(t, s.Transfer(ctx, reserve, alice, 5))

	err := s.Transfer(ctx, reserve, alice, 26)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))

	reserveBalance, _ := s.BalanceOf(ctx, reserve)
	aliceBalance, _ := s.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(25), reserveBalance)
	assert.Equal(t, uint64(25), aliceBalance)

	assert.ErrorIs(t, s.Transfer(ctx, alice, reserve, 0), ledger.ErrInvalidAmount)
	assert.ErrorIs(t, s.Transfer(ctx, "soar1nobody", alice, 1), ledger.ErrInsufficientBalance)
}

func TestEngineClaimsPersistRecordsAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)
	e := newTestEngine(t, s, 24*time.Hour)

	first := time.Unix(1_700_000_000, 0).UTC()
	_, err := e.Claim(ctx, alice, first)
	require.NoError(t, err)

	_, err = e.Claim(ctx, alice, first.Add(time.Hour))
	assert.ErrorIs(t, err, faucet.ErrCooldownActive)

	second := first.Add(24 * time.Hour)
	res, err := e.Claim(ctx, alice, second)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.TotalClaimed)

	record, err := s.Record(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), record.TotalClaimed)
	assert.Equal(t, uint64(2), record.Claims)
	assert.True(t, record.LastClaimAt.Equal(second))

	history, err := s.History(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(20), history[0].TotalClaimed)
	assert.Equal(t, uint64(10), history[1].TotalClaimed)

	balance, _ := s.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(20), balance)
	reserveBalance, _ := s.BalanceOf(ctx, reserve)
	assert.Equal(t, uint64(980), reserveBalance)
}

func TestEngineUnderfundedClaimRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 15)
	e := newTestEngine(t, s, 0)

	_, err := e.Claim(ctx, alice, time.Unix(0, 0))
	require.NoError(t, err)
	_, err = e.Claim(ctx, alice, time.Unix(1, 0))
	assert.ErrorIs(t, err, faucet.ErrInsufficientReserve)

	record, _ := s.Record(ctx, alice)
	assert.Equal(t, uint64(10), record.TotalClaimed)
	history, _ := s.History(ctx, alice, 0)
	assert.Len(t, history, 1)
	balance, _ := s.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(10), balance)
}

func TestEngineLifetimeLimitAndPauseWithDatabase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)
	e := newTestEngine(t, s, 0)

	for i := 0; i < 10; i++ {
		_, err := e.Claim(ctx, alice, time.Unix(int64(i), 0))
		require.NoError(t, err)
	}
	_, err := e.Claim(ctx, alice, time.Unix(100, 0))
	assert.ErrorIs(t, err, faucet.ErrLifetimeLimitExceeded)

	require.NoError(t, e.Pause(ctx, owner))
	paused, err := s.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	_, err = e.Claim(ctx, "soar1bob", time.Unix(100, 0))
	assert.ErrorIs(t, err, faucet.ErrFaucetPaused)

	require.NoError(t, e.Unpause(ctx, owner))
	_, err = e.Claim(ctx, "soar1bob", time.Unix(100, 0))
	assert.NoError(t, err)
}

func TestEngineWithdrawReserveWithDatabase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)
	e := newTestEngine(t, s, 0)

	assert.ErrorIs(t, e.WithdrawReserve(ctx, alice, 10), faucet.ErrUnauthorized)
	require.NoError(t, e.WithdrawReserve(ctx, owner, 300))
	assert.ErrorIs(t, e.WithdrawReserve(ctx, owner, 701), faucet.ErrInsufficientBalance)

	reserveBalance, _ := s.BalanceOf(ctx, reserve)
	ownerBalance, _ := s.BalanceOf(ctx, owner)
	assert.Equal(t, uint64(700), reserveBalance)
	assert.Equal(t, uint64(300), ownerBalance)
}

func TestEngineConcurrentClaimsWithDatabase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)
	e := newTestEngine(t, s, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Claim(ctx, alice, time.Unix(0, 0))
		}()
	}
	wg.Wait()

	record, err := s.Record(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.Claims)
	balance, _ := s.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(10), balance)
}

func TestSeedRejectsDifferentOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)

	seeded, err := s.Seed(ctx, "soar1intruder", reserve, 1000)
	assert.ErrorIs(t, err, ErrOwnerMismatch)
	assert.False(t, seeded)

	seeded, err = s.Seed(ctx, owner, reserve, 1000)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestCreditUpsertsNewAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := credit(tx, alice, 7); err != nil {
			return err
		}
		return credit(tx, alice, 5)
	})
	require.NoError(t, err)

	balance, err := s.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), balance)
}

func TestWithdrawToFreshOwnerAfterClaims(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)
	e := newTestEngine(t, s, 0)

	_, err := e.Claim(ctx, alice, time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, e.WithdrawReserve(ctx, owner, 100))
	require.NoError(t, e.WithdrawReserve(ctx, owner, 50))

	ownerBalance, _ := s.BalanceOf(ctx, owner)
	reserveBalance, _ := s.BalanceOf(ctx, reserve)
	assert.Equal(t, uint64(150), ownerBalance)
	assert.Equal(t, uint64(840), reserveBalance)
}

func TestClaimTimesKeepMicrosecondPrecision(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1000)
	e := newTestEngine(t, s, time.Second)

	result, err := e.Claim(ctx, alice, time.Unix(0, 123456789))
	require.NoError(t, err)
	assert.True(t, result.ClaimedAt.Equal(time.Unix(0, 123456000)))

	record, err := s.Record(ctx, alice)
	require.NoError(t, err)
	assert.True(t, record.LastClaimAt.Equal(result.ClaimedAt))

	_, err = e.Claim(ctx, alice, time.Unix(1, 123455999))
	assert.ErrorIs(t, err, faucet.ErrCooldownActive)
	_, err = e.Claim(ctx, alice, time.Unix(1, 123456000))
	assert.NoError(t, err)
}
