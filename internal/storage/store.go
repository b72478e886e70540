package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/ledger"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrConflict      = errors.New("concurrent claim conflict")
	ErrOwnerMismatch = errors.New("configured owner differs from stored faucet owner")
)

// Store keeps balances, claim records, claim history and admin state in a
// SQL database. Claims run in one transaction with the affected rows locked.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Seed creates the admin state row and funds the reserve on first boot.
// Later boots leave balances alone and must name the stored owner.
func (s *Store) Seed(ctx context.Context, owner, reserve string, funding uint64) (bool, error) {
	seeded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state models.FaucetState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&state, models.FaucetStateID).Error
		if err == nil {
			switch state.Owner {
			case owner:
				return nil
			case "":
				return tx.Model(&state).Update("owner", owner).Error
			default:
				return fmt.Errorf("%w: stored %s, configured %s", ErrOwnerMismatch, state.Owner, owner)
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		state = models.FaucetState{ID: models.FaucetStateID, Owner: owner}
		if err := tx.Create(&state).Error; err != nil {
			return err
		}
		if funding > 0 {
			if err := credit(tx, reserve, funding); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed faucet state: %w", err)
	}
	return seeded, nil
}

func (s *Store) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transfer(tx, from, to, amount)
	})
}

func (s *Store) BalanceOf(ctx context.Context, account string) (uint64, error) {
	var row models.Account
	err := s.db.WithContext(ctx).First(&row, "address = ?", account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Balance, nil
}

func (s *Store) Record(ctx context.Context, account string) (faucet.Record, error) {
	record, _, err := loadRecord(s.db.WithContext(ctx), account)
	return record, err
}

func (s *Store) History(ctx context.Context, account string, limit int) ([]faucet.ClaimEvent, error) {
	query := s.db.WithContext(ctx).
		Where("address = ?", account).
		Order("claimed_at DESC").
		Order("total_claimed DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.ClaimEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]faucet.ClaimEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, faucet.ClaimEvent{
			ID:           row.ID,
			Account:      row.Address,
			Amount:       row.Amount,
			TotalClaimed: row.TotalClaimed,
			ClaimedAt:    row.ClaimedAt.UTC(),
		})
	}
	return events, nil
}

func (s *Store) Paused(ctx context.Context) (bool, error) {
	var state models.FaucetState
	err := s.db.WithContext(ctx).First(&state, models.FaucetStateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return state.Paused, nil
}

func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state models.FaucetState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&state, models.FaucetStateID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.FaucetState{ID: models.FaucetStateID, Paused: paused}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&state).Update("paused", paused).Error
	})
}

func (s *Store) Atomically(ctx context.Context, fn func(tx faucet.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, existing: make(map[string]bool)})
	})
}

type gormTx struct {
	db       *gorm.DB
	existing map[string]bool
}

// Paused takes a share lock on the state row, so SetPaused waits for
// in-flight claims and claims after it see the new flag.
func (t *gormTx) Paused(ctx context.Context) (bool, error) {
	var state models.FaucetState
	err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}).First(&state, models.FaucetStateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return state.Paused, nil
}

func (t *gormTx) Record(ctx context.Context, account string) (faucet.Record, error) {
	record, found, err := loadRecord(t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), account)
	if err != nil {
		return faucet.Record{}, err
	}
	t.existing[account] = found
	return record, nil
}

func (t *gormTx) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return transfer(t.db.WithContext(ctx), from, to, amount)
}

func (t *gormTx) SaveClaim(ctx context.Context, record faucet.Record, amount uint64) error {
	db := t.db.WithContext(ctx)
	row := models.ClaimRecord{
		Address:      record.Account,
		LastClaimAt:  record.LastClaimAt.UTC(),
		TotalClaimed: record.TotalClaimed,
		Claims:       record.Claims,
	}

	if t.existing[record.Account] {
		err := db.Model(&models.ClaimRecord{}).
			Where("address = ?", record.Account).
			Updates(map[string]interface{}{
				"last_claim_at": row.LastClaimAt,
				"total_claimed": row.TotalClaimed,
				"claims":        row.Claims,
				"updated_at":    time.Now().UTC(),
			}).Error
		if err != nil {
			return err
		}
	} else if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrConflict, record.Account)
		}
		return err
	}
	t.existing[record.Account] = true

	return db.Create(&models.ClaimEvent{
		ID:           uuid.NewString(),
		Address:      record.Account,
		Amount:       amount,
		TotalClaimed: record.TotalClaimed,
		ClaimedAt:    record.LastClaimAt.UTC(),
	}).Error
}

func loadRecord(db *gorm.DB, account string) (faucet.Record, bool, error) {
	var row models.ClaimRecord
	err := db.First(&row, "address = ?", account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faucet.Record{Account: account}, false, nil
		}
		return faucet.Record{}, false, err
	}
	return faucet.Record{
		Account:      row.Address,
		LastClaimAt:  row.LastClaimAt.UTC(),
		TotalClaimed: row.TotalClaimed,
		Claims:       row.Claims,
	}, true, nil
}

// transfer locks both balance rows in address order, so two transfers
// touching the same pair cannot deadlock, then applies both legs.
func transfer(tx *gorm.DB, from, to string, amount uint64) error {
	if amount == 0 {
		return ledger.ErrInvalidAmount
	}

	rows, err := lockAccounts(tx, from, to)
	if err != nil {
		return err
	}

	var have uint64
	if src := rows[from]; src != nil {
		have = src.Balance
	}
	if have < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ledger.ErrInsufficientBalance, from, have, amount)
	}
	if from == to {
		return nil
	}

	if err := tx.Model(&models.Account{}).
		Where("address = ?", from).
		Update("balance", have-amount).Error; err != nil {
		return err
	}
	return credit(tx, to, amount)
}

// credit upserts the balance row, so two transactions funding the same new
// address both land instead of colliding on the primary key.
func credit(tx *gorm.DB, address string, amount uint64) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": gorm.Expr("accounts.balance + ?", amount),
		}),
	}).Create(&models.Account{Address: address, Balance: amount}).Error
}

func lockAccounts(tx *gorm.DB, addresses ...string) (map[string]*models.Account, error) {
	sorted := append([]string(nil), addresses...)
	sort.Strings(sorted)

	rows := make(map[string]*models.Account, len(sorted))
	for _, address := range sorted {
		if _, done := rows[address]; done {
			continue
		}
		var row models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "address = ?", address).Error
		switch {
		case err == nil:
			rows[address] = &row
		case errors.Is(err, gorm.ErrRecordNotFound):
			rows[address] = nil
		default:
			return nil, fmt.Errorf("lock account %s: %w", address, err)
		}
	}
	return rows, nil
}

var (
	_ faucet.Store  = (*Store)(nil)
	_ ledger.Ledger = (*Store)(nil)
)
