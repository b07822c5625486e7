package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taixiu-game-backend/internal/services"
)

type UserHandler struct {
	ledger *services.Ledger
}

func NewUserHandler(ledger *services.Ledger) *UserHandler {
	return &UserHandler{ledger: ledger}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64("user_id")
	u := h.ledger.User(userID)

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":            u.ID,
			"username":      u.Username,
			"balance":       u.Balance,
			"bonus_granted": u.BonusGranted,
			"streak":        u.Streak,
			"best_streak":   u.BestStreak,
			"history":       u.History,
		},
	})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": h.ledger.GetBalance(userID),
	})
}
