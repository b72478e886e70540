package models

import (
	"time"
)

type ClaimEvent struct {
	ID           string `gorm:"primaryKey"`
	Address      string `gorm:"index"`
	Amount       uint64
	TotalClaimed uint64
	ClaimedAt    time.Time `gorm:"index"`
}
