package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paper-trade-go/internal/auth"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/models"
	"paper-trade-go/internal/portfolio"
	"paper-trade-go/internal/quotes"
)

// MockQuoteService is a mock implementation of the quotes.Service interface.
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) Lookup(ctx context.Context, symbol string) (*quotes.Quote, error) {
	args := m.Called(symbol)
	if q := args.Get(0); q != nil {
		return q.(*quotes.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

// setupRouter wires a full server against an in-memory ledger and a mock
// quote service.
func setupRouter(t *testing.T) (*gin.Engine, *MockQuoteService) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Holding{}, &models.HistoryEntry{}))

	store := ledger.NewStore(db)
	mockQuotes := new(MockQuoteService)
	engine := portfolio.NewEngine(zap.NewNop(), store, mockQuotes)
	tokens := auth.NewTokens("test-secret", time.Hour)

	srv := New(zap.NewNop(), store, engine, tokens, decimal.RequireFromString("10000.00"))
	return srv.Router(), mockQuotes
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	w := doJSON(router, http.MethodPost, "/api/register", "", gin.H{
		"username":     username,
		"password":     "pw",
		"confirmation": "pw",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/login", "", gin.H{
		"username": username,
		"password": "pw",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRegister_Validation(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/register", "", gin.H{"username": "", "password": "pw", "confirmation": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/register", "", gin.H{"username": "alice", "password": "pw", "confirmation": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "passwords do not match")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	router, _ := setupRouter(t)

	body := gin.H{"username": "alice", "password": "pw", "confirmation": "pw"}
	w := doJSON(router, http.MethodPost, "/api/register", "", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/register", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "username already exists")
}

func TestLogin_BadCredentials(t *testing.T) {
	router, _ := setupRouter(t)
	registerAndLogin(t, router, "alice")

	w := doJSON(router, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/login", "", gin.H{"username": "ghost", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/api/portfolio", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/buy", "garbage-token", gin.H{"symbol": "NET", "shares": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuySellFlow(t *testing.T) {
	router, mockQuotes := setupRouter(t)
	token := registerAndLogin(t, router, "alice")

	mockQuotes.On("Lookup", "NET").Return(&quotes.Quote{
		Symbol: "NET",
		Name:   "Cloudflare Inc",
		Price:  decimal.RequireFromString("50.00"),
	}, nil)

	// Buy 10 shares at 50.00.
	w := doJSON(router, http.MethodPost, "/api/buy", token, gin.H{"symbol": "NET", "shares": 10})
	require.Equal(t, http.StatusOK, w.Code)

	// Decimals marshal as quoted strings.
	var trade struct {
		Status    string `json:"status"`
		CashAfter string `json:"cash_after"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trade))
	assert.Equal(t, models.StatusBuy, trade.Status)
	assert.Equal(t, "9500.00", trade.CashAfter)

	// Portfolio reflects the refreshed valuation.
	w = doJSON(router, http.MethodGet, "/api/portfolio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Holdings   []map[string]any `json:"holdings"`
		GrandTotal string           `json:"grand_total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Holdings, 1)
	assert.Equal(t, "10000.00", view.GrandTotal)

	// Sell everything back.
	w = doJSON(router, http.MethodPost, "/api/sell", token, gin.H{"symbol": "NET", "shares": 10})
	require.Equal(t, http.StatusOK, w.Code)

	// Two entries, most recent first.
	w = doJSON(router, http.MethodGet, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusSell, history[0]["status"])
	assert.Equal(t, models.StatusBuy, history[1]["status"])

	// Clearing the history leaves nothing behind.
	w = doJSON(router, http.MethodDelete, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Empty(t, history)
}

func TestBuy_RejectionsMapTo400(t *testing.T) {
	router, mockQuotes := setupRouter(t)
	token := registerAndLogin(t, router, "alice")

	mockQuotes.On("Lookup", "NOPE").Return(nil, quotes.ErrSymbolNotFound)
	w := doJSON(router, http.MethodPost, "/api/buy", token, gin.H{"symbol": "NOPE", "shares": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid stock entry")

	mockQuotes.On("Lookup", "NET").Return(&quotes.Quote{
		Symbol: "NET",
		Name:   "Cloudflare Inc",
		Price:  decimal.RequireFromString("50000.00"),
	}, nil)
	w = doJSON(router, http.MethodPost, "/api/buy", token, gin.H{"symbol": "NET", "shares": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient funds")
}

func TestBuy_ProviderOutageMapsTo502(t *testing.T) {
	router, mockQuotes := setupRouter(t)
	token := registerAndLogin(t, router, "alice")

	mockQuotes.On("Lookup", "NET").Return(nil, fmt.Errorf("connection refused"))

	w := doJSON(router, http.MethodPost, "/api/buy", token, gin.H{"symbol": "NET", "shares": 1})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChangePassword(t *testing.T) {
	router, _ := setupRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := doJSON(router, http.MethodPost, "/api/password", token, gin.H{
		"current": "wrong", "new": "pw2", "confirmation": "pw2",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodPost, "/api/password", token, gin.H{
		"current": "pw", "new": "pw2", "confirmation": "pw3",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/password", token, gin.H{
		"current": "pw", "new": "pw2", "confirmation": "pw2",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// The old password no longer works, the new one does.
	w = doJSON(router, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "pw2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	router, mockQuotes := setupRouter(t)
	token := registerAndLogin(t, router, "alice")

	mockQuotes.On("Lookup", "NET").Return(&quotes.Quote{
		Symbol: "NET",
		Name:   "Cloudflare Inc",
		Price:  decimal.RequireFromString("123.45"),
	}, nil)

	w := doJSON(router, http.MethodGet, "/api/quote/net", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cloudflare Inc")
	assert.Contains(t, w.Body.String(), "123.45")
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
