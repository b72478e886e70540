// internal/models/faucet_state.go

package models

import "time"

// FaucetState is a single row (ID 1) holding admin state.
type FaucetState struct {
	ID        uint `gorm:"primaryKey"`
	Owner     string
	Paused    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const FaucetStateID = 1

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{&Account{}, &ClaimRecord{}, &ClaimEvent{}, &FaucetState{}}
}
