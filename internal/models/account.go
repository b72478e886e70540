package models

// Account is one ledger balance row.
type Account struct {
	Address string `gorm:"primaryKey"`
	Balance uint64
}
