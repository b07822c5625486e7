package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taixiu-game-backend/internal/models"
	"taixiu-game-backend/internal/services"
)

type AdminHandler struct {
	engine    *services.RoundEngine
	ledger    *services.Ledger
	approvals *services.ApprovalService
}

func NewAdminHandler(engine *services.RoundEngine, ledger *services.Ledger, approvals *services.ApprovalService) *AdminHandler {
	return &AdminHandler{
		engine:    engine,
		ledger:    ledger,
		approvals: approvals,
	}
}

// OpenRound force-opens a betting window outside the scheduler cadence.
func (h *AdminHandler) OpenRound(c *gin.Context) {
	id, err := h.engine.OpenRound()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "round_id": id})
}

type outcomeRequest struct {
	Side string `json:"side" binding:"required"` // "over", "under" or "none"
}

func (h *AdminHandler) SetOutcome(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	side := models.Side(req.Side)
	if req.Side == "none" {
		side = ""
	}

	if err := h.engine.SetForcedOutcome(side); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "forced_side": side})
}

type biasRequest struct {
	POver float64 `json:"p_over"`
}

func (h *AdminHandler) SetBias(c *gin.Context) {
	var req biasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.engine.SetBias(req.POver); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "p_over": req.POver})
}

func (h *AdminHandler) ClearBias(c *gin.Context) {
	if err := h.engine.ClearBias(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type creditRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Amount int64 `json:"amount" binding:"required"`
}

// Credit is the manual balance adjustment for support cases.
func (h *AdminHandler) Credit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.ledger.Credit(req.UserID, req.Amount); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": h.ledger.GetBalance(req.UserID),
	})
}

func (h *AdminHandler) ListRequests(c *gin.Context) {
	kind := models.RequestKind(c.DefaultQuery("kind", string(models.RequestDeposit)))
	if kind != models.RequestDeposit && kind != models.RequestWithdraw {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid kind"})
		return
	}
	status := models.RequestStatus(c.Query("status"))

	requests, err := h.approvals.List(kind, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"requests": requests,
		"count":    len(requests),
	})
}

func (h *AdminHandler) ApproveRequest(c *gin.Context) {
	h.decide(c, true)
}

func (h *AdminHandler) DenyRequest(c *gin.Context) {
	h.decide(c, false)
}

func (h *AdminHandler) decide(c *gin.Context, approve bool) {
	adminID := c.GetInt64("user_id")

	req, err := h.approvals.Decide(c.Param("id"), adminID, approve)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "request": req})
}
