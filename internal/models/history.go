package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade statuses recorded in the history ledger.
const (
	StatusBuy  = "Buy"
	StatusSell = "Sell"
)

// HistoryEntry is an immutable record of one executed trade.
type HistoryEntry struct {
	gorm.Model
	UserID    uint      `gorm:"index;not null" json:"-"`
	Status    string    `gorm:"not null" json:"status"`
	Symbol    string    `gorm:"not null" json:"symbol"`
	Shares    int64     `gorm:"not null" json:"shares"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}
