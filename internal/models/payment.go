package models

import (
	"time"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusFailed    = "failed"
)

// CurrencyETH is the currency of job posting fees.
const CurrencyETH = "ETH"

// Payment records one on-chain job posting fee. A transaction hash pays for at most one job.
type Payment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	JobID           *uint      `gorm:"uniqueIndex" json:"job_id,omitempty"`
	Amount          string     `gorm:"size:40;not null" json:"amount"`
	AmountWei       string     `gorm:"size:80;not null" json:"amount_wei"`
	Currency        string     `gorm:"size:8;not null" json:"currency"`
	TransactionHash string     `gorm:"size:66;not null;uniqueIndex" json:"transaction_hash"`
	FromAddress     string     `gorm:"size:42" json:"from_address,omitempty"`
	ToAddress       string     `gorm:"size:42" json:"to_address,omitempty"`
	Blockchain      string     `gorm:"size:32;not null" json:"blockchain"`
	ChainID         int64      `json:"chain_id"`
	Status          string     `gorm:"size:16;not null;index" json:"status"`
	FailureReason   string     `gorm:"size:255" json:"failure_reason,omitempty"`
	BlockNumber     *uint64    `json:"block_number,omitempty"`
	ExplorerURL     string     `gorm:"size:255" json:"explorer_url"`
	LastCheckedAt   *time.Time `gorm:"index" json:"last_checked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AllModels lists every persisted model in dependency order.
func AllModels() []any {
	return []any{
		&User{},
		&Profile{},
		&Job{},
		&JobApplication{},
		&SavedJob{},
		&Post{},
		&PostInteraction{},
		&Payment{},
	}
}
