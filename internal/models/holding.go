package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding represents a user's position in one stock symbol.
// Holdings are keyed by (user, symbol): one row per symbol per owner.
type Holding struct {
	gorm.Model
	UserID        uint            `gorm:"uniqueIndex:idx_user_symbol;not null" json:"-"`
	Symbol        string          `gorm:"uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	Name          string          `json:"name"`
	Shares        int64           `gorm:"not null" json:"shares"`
	PricePerShare decimal.Decimal `gorm:"type:numeric" json:"price_per_share"`
	Total         decimal.Decimal `gorm:"type:numeric" json:"total"`
}
