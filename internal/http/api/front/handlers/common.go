package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumagen/lumagen/internal/credit"
	"github.com/lumagen/lumagen/internal/modelcatalog"
	"github.com/lumagen/lumagen/internal/models"
)

// authCodeContextKey is where middleware stores the resolved code.
const authCodeContextKey = "authCode"

// getAuthCode extracts the resolved authorization code from gin context.
func getAuthCode(c *gin.Context) *models.AuthCode {
	val, exists := c.Get(authCodeContextKey)
	if !exists {
		return nil
	}
	code, ok := val.(*models.AuthCode)
	if !ok {
		return nil
	}
	return code
}

// respondCreditError translates ledger and catalog errors into HTTP
// responses. Returns true when the error was handled.
func respondCreditError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var insufficient *credit.InsufficientCreditsError
	switch {
	case errors.Is(err, modelcatalog.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "model not found or inactive"})
		return true
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":            "insufficient credits",
			"required":         insufficient.Required,
			"team_balance":     insufficient.TeamBalance,
			"personal_balance": insufficient.PersonalBalance,
			"shortfall":        insufficient.Required - insufficient.TeamBalance - insufficient.PersonalBalance,
		})
		return true
	case errors.Is(err, credit.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "balance update conflict, please retry"})
		return true
	}
	return false
}
