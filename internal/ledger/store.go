package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"paper-trade-go/internal/models"
)

// Store errors surfaced to callers.
var (
	ErrNotFound      = errors.New("record not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// Store is the durable ledger: users, holdings and trade history.
// It wraps an explicit gorm handle; there is no package-level state.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transact runs fn inside one database transaction. Any error returned by fn
// rolls back every write made through the transactional Store.
func (s *Store) Transact(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateUser registers a new user with the given starting cash.
func (s *Store) CreateUser(username, hash string, cash decimal.Decimal) (*models.User, error) {
	var existing models.User
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	user := models.User{Username: username, Hash: hash, Cash: cash}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// UserByName looks a user up by exact username.
func (s *Store) UserByName(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user %q: %w", username, err)
	}
	return &user, nil
}

// UserByID loads a user by primary key.
func (s *Store) UserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

// UpdateCash overwrites a user's cash balance.
func (s *Store) UpdateCash(userID uint, cash decimal.Decimal) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Update("cash", cash).Error; err != nil {
		return fmt.Errorf("failed to update cash for user %d: %w", userID, err)
	}
	return nil
}

// UpdateHash overwrites a user's password hash.
func (s *Store) UpdateHash(userID uint, hash string) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Update("hash", hash).Error; err != nil {
		return fmt.Errorf("failed to update hash for user %d: %w", userID, err)
	}
	return nil
}

// HoldingFor loads one user's holding in a symbol, or ErrNotFound.
func (s *Store) HoldingFor(userID uint, symbol string) (*models.Holding, error) {
	var holding models.Holding
	err := s.db.Where("user_id = ? AND symbol = ?", userID, symbol).First(&holding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load holding %s for user %d: %w", symbol, userID, err)
	}
	return &holding, nil
}

// HoldingsFor returns all of a user's holdings ordered by symbol.
func (s *Store) HoldingsFor(userID uint) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := s.db.Where("user_id = ?", userID).Order("symbol asc").Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("failed to load holdings for user %d: %w", userID, err)
	}
	return holdings, nil
}

// SaveHolding creates or updates a holding row.
func (s *Store) SaveHolding(holding *models.Holding) error {
	if err := s.db.Save(holding).Error; err != nil {
		return fmt.Errorf("failed to save holding %s for user %d: %w", holding.Symbol, holding.UserID, err)
	}
	return nil
}

// DeleteHolding removes a holding row entirely. The delete is unscoped: an
// exhausted position must not linger as a soft-deleted row, or its unique
// (user, symbol) index would block a later re-buy.
func (s *Store) DeleteHolding(holding *models.Holding) error {
	if err := s.db.Unscoped().Delete(holding).Error; err != nil {
		return fmt.Errorf("failed to delete holding %s for user %d: %w", holding.Symbol, holding.UserID, err)
	}
	return nil
}

// AppendHistory records one executed trade.
func (s *Store) AppendHistory(userID uint, status, symbol string, shares int64, at time.Time) error {
	entry := models.HistoryEntry{
		UserID:    userID,
		Status:    status,
		Symbol:    symbol,
		Shares:    shares,
		Timestamp: at,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append history for user %d: %w", userID, err)
	}
	return nil
}

// HistoryFor returns a user's trade history, most recent first.
func (s *Store) HistoryFor(userID uint) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.Where("user_id = ?", userID).Order("timestamp desc, id desc").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history for user %d: %w", userID, err)
	}
	return entries, nil
}

// ClearHistory removes all history entries for one user. Holdings and cash
// are untouched.
func (s *Store) ClearHistory(userID uint) error {
	if err := s.db.Unscoped().Where("user_id = ?", userID).Delete(&models.HistoryEntry{}).Error; err != nil {
		return fmt.Errorf("failed to clear history for user %d: %w", userID, err)
	}
	return nil
}
