package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paper-trade-go/internal/auth"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/portfolio"
)

// writeError maps engine errors onto HTTP responses. Rejections are client
// errors, provider outages are bad gateways, anything else is internal.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case portfolio.IsRejection(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case portfolio.IsDependencyFailure(err):
		s.logger.Error("Quote provider failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "quote provider unavailable"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

type registerInput struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

func (s *Server) register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "must enter username"})
		return
	}
	if input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	if input.Password != input.Confirmation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	user, err := s.store.CreateUser(input.Username, hash, s.startingCash)
	if err != nil {
		if errors.Is(err, ledger.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		s.writeError(c, err)
		return
	}

	s.logger.Info("User registered", zap.String("username", user.Username), zap.Uint("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username, "cash": user.Cash})
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "must provide username"})
		return
	}
	if input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "must provide password"})
		return
	}

	user, err := s.store.UserByName(input.Username)
	if err != nil || !auth.CheckPassword(user.Hash, input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username and/or password"})
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

type changePasswordInput struct {
	Current      string `json:"current"`
	New          string `json:"new"`
	Confirmation string `json:"confirmation"`
}

func (s *Server) changePassword(c *gin.Context) {
	var input changePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.UserByID(currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	if input.Current == "" || !auth.CheckPassword(user.Hash, input.Current) {
		c.JSON(http.StatusForbidden, gin.H{"error": "password incorrect"})
		return
	}
	if input.New == "" || input.Confirmation == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input new password"})
		return
	}
	if input.New != input.Confirmation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}

	hash, err := auth.HashPassword(input.New)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.store.UpdateHash(user.ID, hash); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (s *Server) quote(c *gin.Context) {
	quote, err := s.engine.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": quote.Symbol, "name": quote.Name, "price": quote.Price})
}

type tradeInput struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

func (s *Server) buy(c *gin.Context) {
	var input tradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.Buy(c.Request.Context(), currentUser(c), input.Symbol, input.Shares)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) sell(c *gin.Context) {
	var input tradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.Sell(c.Request.Context(), currentUser(c), input.Symbol, input.Shares)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) portfolio(c *gin.Context) {
	view, err := s.engine.Portfolio(c.Request.Context(), currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) history(c *gin.Context) {
	entries, err := s.engine.History(c.Request.Context(), currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) clearHistory(c *gin.Context) {
	if err := s.engine.ClearHistory(c.Request.Context(), currentUser(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "history cleared"})
}
