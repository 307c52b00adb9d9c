package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents a registered account and its cash balance.
type User struct {
	gorm.Model
	Username string          `gorm:"uniqueIndex;not null" json:"username"`
	Hash     string          `gorm:"not null" json:"-"`
	Cash     decimal.Decimal `gorm:"type:numeric;not null" json:"cash"`
}
