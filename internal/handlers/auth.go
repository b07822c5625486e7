package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taixiu-game-backend/internal/config"
	"taixiu-game-backend/internal/services"
)

type AuthHandler struct {
	ledger     *services.Ledger
	jwtService *services.JWTService
	cfg        *config.Config
}

func NewAuthHandler(ledger *services.Ledger, jwtService *services.JWTService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		ledger:     ledger,
		jwtService: jwtService,
		cfg:        cfg,
	}
}

type loginRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username"`
}

// Login issues a token for a chat user id and lazily creates the account,
// granting the one-time starting bonus on first contact.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if req.Username != "" {
		if err := h.ledger.SetUsername(req.UserID, req.Username); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update account"})
			return
		}
	}

	granted, err := h.ledger.GrantFirstBonus(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare account"})
		return
	}

	isAdmin := h.cfg.IsAdmin(req.UserID)
	token, err := h.jwtService.GenerateToken(req.UserID, req.Username, isAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"token":         token,
		"is_admin":      isAdmin,
		"bonus_granted": granted,
		"bonus_amount":  h.ledger.BonusAmount(),
		"balance":       h.ledger.GetBalance(req.UserID),
	})
}
