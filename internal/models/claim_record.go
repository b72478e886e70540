package models

import "time"

type ClaimRecord struct {
	Address      string `gorm:"primaryKey"`
	LastClaimAt  time.Time
	TotalClaimed uint64
	Claims       uint64
	UpdatedAt    time.Time
}
