package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/models"
	"paper-trade-go/internal/quotes"
)

// Engine is the portfolio-and-ledger consistency core. It decides whether a
// trade is accepted and applies the cash, holding and history writes as one
// atomic unit.
type Engine struct {
	logger *zap.Logger
	store  *ledger.Store
	quotes quotes.Service
}

// NewEngine creates a new portfolio engine.
func NewEngine(logger *zap.Logger, store *ledger.Store, qs quotes.Service) *Engine {
	return &Engine{
		logger: logger,
		store:  store,
		quotes: qs,
	}
}

// TradeResult describes one executed trade.
type TradeResult struct {
	Status    string          `json:"status"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	CashAfter decimal.Decimal `json:"cash_after"`
}

// View is a user's refreshed portfolio: holdings at live prices, cash, and
// the grand total of both.
type View struct {
	Holdings   []models.Holding `json:"holdings"`
	Cash       decimal.Decimal  `json:"cash"`
	GrandTotal decimal.Decimal  `json:"grand_total"`
	// Stale lists symbols whose live price could not be fetched; their rows
	// keep the last-known valuation.
	Stale []string `json:"stale,omitempty"`
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// lookup maps quote provider results onto the engine's error taxonomy.
func (e *Engine) lookup(ctx context.Context, symbol string) (*quotes.Quote, error) {
	quote, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, quotes.ErrSymbolNotFound) {
			return nil, ErrInvalidStock
		}
		return nil, &DependencyError{Err: err}
	}
	return quote, nil
}

// Quote returns the live quote for a symbol, for display.
func (e *Engine) Quote(ctx context.Context, symbol string) (*quotes.Quote, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	return e.lookup(ctx, symbol)
}

// Buy purchases shares of a symbol at the live price. Cash debit, holding
// upsert and the history append happen in one transaction.
func (e *Engine) Buy(ctx context.Context, userID uint, symbol string, shares int64) (*TradeResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrSymbolRequired
	}

	quote, err := e.lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if shares <= 0 {
		return nil, ErrInvalidShareInput
	}

	cost := quote.Price.Mul(decimal.NewFromInt(shares))

	var result *TradeResult
	err = e.store.Transact(func(tx *ledger.Store) error {
		user, err := tx.UserByID(userID)
		if err != nil {
			return err
		}

		if user.Cash.LessThan(cost) {
			return ErrInsufficientFunds
		}
		cashAfter := user.Cash.Sub(cost)

		holding, err := tx.HoldingFor(userID, quote.Symbol)
		switch {
		case err == nil:
			holding.Shares += shares
		case errors.Is(err, ledger.ErrNotFound):
			holding = &models.Holding{
				UserID: userID,
				Symbol: quote.Symbol,
				Name:   quote.Name,
			}
			holding.Shares = shares
		default:
			return err
		}
		holding.PricePerShare = quote.Price
		holding.Total = quote.Price.Mul(decimal.NewFromInt(holding.Shares))

		if err := tx.SaveHolding(holding); err != nil {
			return err
		}
		if err := tx.UpdateCash(userID, cashAfter); err != nil {
			return err
		}
		if err := tx.AppendHistory(userID, models.StatusBuy, quote.Symbol, shares, time.Now().UTC()); err != nil {
			return err
		}

		result = &TradeResult{
			Status:    models.StatusBuy,
			Symbol:    quote.Symbol,
			Name:      quote.Name,
			Shares:    shares,
			Price:     quote.Price,
			Total:     cost,
			CashAfter: cashAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Trade executed",
		zap.String("status", models.StatusBuy),
		zap.Uint("user_id", userID),
		zap.String("symbol", result.Symbol),
		zap.Int64("shares", shares),
		zap.String("price", result.Price.String()),
	)
	return result, nil
}

// Sell disposes of shares at the live price, fetched at sell time rather than
// the stored valuation. The holding row is removed when shares hit zero.
func (e *Engine) Sell(ctx context.Context, userID uint, symbol string, shares int64) (*TradeResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrSelectStock
	}

	// Existence and share-count checks run again inside the transaction; this
	// first pass keeps the rejection ordering stable and avoids a provider
	// call for a stock the user does not own.
	held, err := e.store.HoldingFor(userID, symbol)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrSelectStock
		}
		return nil, err
	}
	if shares <= 0 || shares > held.Shares {
		return nil, ErrInvalidShares
	}

	quote, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, &DependencyError{Err: err}
	}

	proceeds := quote.Price.Mul(decimal.NewFromInt(shares))

	var result *TradeResult
	err = e.store.Transact(func(tx *ledger.Store) error {
		holding, err := tx.HoldingFor(userID, symbol)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ErrSelectStock
			}
			return err
		}
		if shares > holding.Shares {
			return ErrInvalidShares
		}

		user, err := tx.UserByID(userID)
		if err != nil {
			return err
		}
		cashAfter := user.Cash.Add(proceeds)

		remaining := holding.Shares - shares
		if remaining == 0 {
			if err := tx.DeleteHolding(holding); err != nil {
				return err
			}
		} else {
			holding.Shares = remaining
			holding.PricePerShare = quote.Price
			holding.Total = quote.Price.Mul(decimal.NewFromInt(remaining))
			if err := tx.SaveHolding(holding); err != nil {
				return err
			}
		}

		if err := tx.UpdateCash(userID, cashAfter); err != nil {
			return err
		}
		if err := tx.AppendHistory(userID, models.StatusSell, symbol, shares, time.Now().UTC()); err != nil {
			return err
		}

		result = &TradeResult{
			Status:    models.StatusSell,
			Symbol:    symbol,
			Name:      holding.Name,
			Shares:    shares,
			Price:     quote.Price,
			Total:     proceeds,
			CashAfter: cashAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Trade executed",
		zap.String("status", models.StatusSell),
		zap.Uint("user_id", userID),
		zap.String("symbol", result.Symbol),
		zap.Int64("shares", shares),
		zap.String("price", result.Price.String()),
	)
	return result, nil
}

// Portfolio refreshes the valuation of every holding the user owns and
// returns the refreshed view. Rows whose live price cannot be fetched keep
// their last-known valuation and are reported in View.Stale.
func (e *Engine) Portfolio(ctx context.Context, userID uint) (*View, error) {
	user, err := e.store.UserByID(userID)
	if err != nil {
		return nil, err
	}

	holdings, err := e.store.HoldingsFor(userID)
	if err != nil {
		return nil, err
	}

	view := &View{
		Holdings:   make([]models.Holding, 0, len(holdings)),
		Cash:       user.Cash,
		GrandTotal: user.Cash,
	}

	for i := range holdings {
		holding := holdings[i]
		quote, err := e.quotes.Lookup(ctx, holding.Symbol)
		if err != nil {
			e.logger.Warn("Valuation refresh failed, keeping last-known price",
				zap.String("symbol", holding.Symbol),
				zap.Uint("user_id", userID),
				zap.Error(err),
			)
			view.Stale = append(view.Stale, holding.Symbol)
		} else {
			holding.PricePerShare = quote.Price
			holding.Total = quote.Price.Mul(decimal.NewFromInt(holding.Shares))
			if err := e.store.SaveHolding(&holding); err != nil {
				return nil, fmt.Errorf("failed to persist refreshed valuation: %w", err)
			}
		}
		view.GrandTotal = view.GrandTotal.Add(holding.Total)
		view.Holdings = append(view.Holdings, holding)
	}

	return view, nil
}

// History returns the user's trade history, most recent first.
func (e *Engine) History(ctx context.Context, userID uint) ([]models.HistoryEntry, error) {
	return e.store.HistoryFor(userID)
}

// ClearHistory wipes the user's trade history. Holdings and cash are
// untouched.
func (e *Engine) ClearHistory(ctx context.Context, userID uint) error {
	return e.store.ClearHistory(userID)
}
