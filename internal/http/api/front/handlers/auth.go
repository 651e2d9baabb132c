package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/authcode"
	"github.com/lumagen/lumagen/internal/credit"
	"github.com/lumagen/lumagen/internal/models"
)

// AuthHandler serves authorization code verification.
type AuthHandler struct {
	db       *gorm.DB
	registry *authcode.Registry
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, registry *authcode.Registry) *AuthHandler {
	return &AuthHandler{db: db, registry: registry}
}

// verifyRequest is the POST /auth/verify payload.
type verifyRequest struct {
	AuthCode string `json:"auth_code" binding:"required"`
}

// Verify checks a code and returns its status and balances.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "auth_code is required"})
		return
	}

	code, errLookup := h.registry.Lookup(c.Request.Context(), req.AuthCode)
	if errLookup != nil {
		if errors.Is(errLookup, authcode.ErrCodeNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "invalid authorization code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify code"})
		return
	}

	if code.Status != models.AuthCodeStatusActive {
		reason := "code disabled"
		if code.Status == models.AuthCodeStatusExpired {
			reason = "code expired"
		}
		c.JSON(http.StatusForbidden, gin.H{"valid": false, "status": code.Status, "error": reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"status": code.Status,
		"user":   codeProfile(code),
	})
}

// codeProfile shapes the user-facing view of a code.
func codeProfile(code *models.AuthCode) gin.H {
	balances := credit.BalancesOf(code)
	profile := gin.H{
		"auth_code":        code.Code,
		"status":           code.Status,
		"personal_credits": balances.Personal,
		"team_credits":     balances.Team,
		"total_credits":    balances.Total(),
	}
	if code.ExpireTime != nil {
		profile["expire_time"] = code.ExpireTime
	}
	if code.Team != nil {
		profile["team"] = gin.H{
			"id":   code.Team.ID,
			"name": code.Team.Name,
			"role": code.TeamRole,
		}
	}
	return profile
}
