package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/credit"
)

// UsersHandler serves the authenticated code's profile and balances.
type UsersHandler struct {
	db *gorm.DB
}

// NewUsersHandler constructs a UsersHandler.
func NewUsersHandler(db *gorm.DB) *UsersHandler {
	return &UsersHandler{db: db}
}

// Me returns the caller's profile.
func (h *UsersHandler) Me(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, codeProfile(code))
}

// Credits returns the caller's spendable balances.
func (h *UsersHandler) Credits(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	balances := credit.BalancesOf(code)
	c.JSON(http.StatusOK, gin.H{
		"personal_credits": balances.Personal,
		"team_credits":     balances.Team,
		"total_credits":    balances.Total(),
	})
}
