// Package admin wires the administrator API under /v0/admin.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/config"
	"github.com/lumagen/lumagen/internal/http/api/admin/handlers"
	"github.com/lumagen/lumagen/internal/models"
	"github.com/lumagen/lumagen/internal/security"
)

// RegisterAdminRoutes mounts the admin API on the given engine. Login is
// public; everything else sits behind the JWT middleware.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	codeHandler := handlers.NewAuthCodeHandler(db)
	teamHandler := handlers.NewTeamHandler(db)
	modelHandler := handlers.NewModelDefinitionHandler(db)
	dashboardHandler := handlers.NewDashboardHandler(db)
	logHandler := handlers.NewGenerationLogHandler(db)

	api := r.Group("/v0/admin")
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg.Secret))
	{
		authed.GET("/auth-codes", codeHandler.List)
		authed.POST("/auth-codes", codeHandler.Create)
		authed.PUT("/auth-codes/:id", codeHandler.Update)
		authed.POST("/auth-codes/:id/top-up", codeHandler.TopUp)

		authed.GET("/teams", teamHandler.List)
		authed.POST("/teams", teamHandler.Create)
		authed.PUT("/teams/:id", teamHandler.Update)
		authed.DELETE("/teams/:id", teamHandler.Delete)
		authed.POST("/teams/:id/top-up", teamHandler.TopUp)

		authed.GET("/models", modelHandler.List)
		authed.POST("/models", modelHandler.Create)
		authed.PUT("/models/:id", modelHandler.Update)

		authed.GET("/dashboard/overview", dashboardHandler.Overview)
		authed.GET("/dashboard/credit-consumption", dashboardHandler.CreditConsumption)
		authed.GET("/dashboard/model-distribution", dashboardHandler.ModelDistribution)

		authed.GET("/generations", logHandler.List)
	}
}

// adminAuthMiddleware validates the bearer token and loads the admin
// account. Deactivated accounts are rejected even with a valid token.
func adminAuthMiddleware(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, errParse := security.ParseAdminToken(secret, tokenString)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
