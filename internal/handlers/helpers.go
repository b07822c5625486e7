package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taixiu-game-backend/internal/services"
)

// respondError maps service sentinel errors onto HTTP statuses with the
// standard error body shape.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, services.ErrBettingClosed),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrInvalidRound),
		errors.Is(err, services.ErrRequestDecided):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrBonusStakeLimit),
		errors.Is(err, services.ErrBelowMinWithdraw):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrRequestNotFound):
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
