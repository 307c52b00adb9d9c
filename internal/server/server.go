package server

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trade-go/internal/auth"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/portfolio"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	logger       *zap.Logger
	store        *ledger.Store
	engine       *portfolio.Engine
	tokens       *auth.Tokens
	startingCash decimal.Decimal
}

// New creates a new Server.
func New(logger *zap.Logger, store *ledger.Store, engine *portfolio.Engine, tokens *auth.Tokens, startingCash decimal.Decimal) *Server {
	return &Server{
		logger:       logger,
		store:        store,
		engine:       engine,
		tokens:       tokens,
		startingCash: startingCash,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)

	// Public routes
	router.POST("/api/register", s.register)
	router.POST("/api/login", s.login)

	// Protected routes
	api := router.Group("/api")
	api.Use(RequireAuth(s.tokens))
	{
		api.POST("/password", s.changePassword)
		api.GET("/quote/:symbol", s.quote)
		api.POST("/buy", s.buy)
		api.POST("/sell", s.sell)
		api.GET("/portfolio", s.portfolio)
		api.GET("/history", s.history)
		api.DELETE("/history", s.clearHistory)
	}

	return router
}
