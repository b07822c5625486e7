package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taixiu-game-backend/internal/models"
	"taixiu-game-backend/internal/services"
)

type GameHandler struct {
	engine    *services.RoundEngine
	ledger    *services.Ledger
	pot       *services.PotAccount
	approvals *services.ApprovalService
}

func NewGameHandler(engine *services.RoundEngine, ledger *services.Ledger, pot *services.PotAccount, approvals *services.ApprovalService) *GameHandler {
	return &GameHandler{
		engine:    engine,
		ledger:    ledger,
		pot:       pot,
		approvals: approvals,
	}
}

type betRequest struct {
	RoundID int64       `json:"round_id"`
	Side    models.Side `json:"side" binding:"required"`
	Amount  int64       `json:"amount" binding:"required"`
}

// PlaceBet stakes on the open round. When round_id is omitted the bet goes
// to the current round.
func (h *GameHandler) PlaceBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	roundID := req.RoundID
	if roundID == 0 {
		roundID = h.engine.CurrentRound().ID
	}

	bet, err := h.engine.PlaceBet(roundID, userID, req.Side, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bet":     bet,
		"balance": h.ledger.GetBalance(userID),
	})
}

func (h *GameHandler) CurrentRound(c *gin.Context) {
	rs := h.engine.CurrentRound()

	c.JSON(http.StatusOK, gin.H{
		"round": gin.H{
			"id":        rs.ID,
			"status":    rs.Status,
			"closes_at": rs.ClosesAt,
		},
		"pot": h.pot.Balance(),
	})
}

func (h *GameHandler) RoundHistory(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 10
	}

	history, err := h.engine.History(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rounds":  history,
		"count":   len(history),
	})
}

func (h *GameHandler) Pot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pot": h.pot.Balance()})
}

// Leaderboard lists the top accounts by best win streak, ids masked for the
// public feed.
func (h *GameHandler) Leaderboard(c *gin.Context) {
	top := h.ledger.TopByBestStreak(10)

	entries := make([]gin.H, 0, len(top))
	for _, u := range top {
		entries = append(entries, gin.H{
			"user":        models.MaskUserID(u.ID),
			"best_streak": u.BestStreak,
			"balance":     u.Balance,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"leaderboard": entries,
	})
}

type transferRequestBody struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *GameHandler) CreateDeposit(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var body transferRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	req, err := h.approvals.SubmitDeposit(userID, body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "request": req})
}

func (h *GameHandler) CreateWithdraw(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var body transferRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	req, err := h.approvals.SubmitWithdraw(userID, body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "request": req})
}
