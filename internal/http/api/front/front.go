// Package front wires the end-user API under /v0/front.
package front

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/authcode"
	"github.com/lumagen/lumagen/internal/credit"
	"github.com/lumagen/lumagen/internal/generation"
	"github.com/lumagen/lumagen/internal/history"
	"github.com/lumagen/lumagen/internal/http/api/front/handlers"
	"github.com/lumagen/lumagen/internal/modelcatalog"
	"github.com/lumagen/lumagen/internal/ratelimit"
	"github.com/lumagen/lumagen/internal/storage"
)

// Dependencies bundles everything the front routes need.
type Dependencies struct {
	DB       *gorm.DB
	Registry *authcode.Registry
	Catalog  *modelcatalog.Catalog
	Ledger   *credit.Ledger
	Invoker  generation.Invoker
	Store    storage.Store
	Recorder *history.Recorder
	Limiter  *ratelimit.Manager
}

// RegisterFrontRoutes registers public and code-authenticated routes.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.DB == nil {
		return
	}

	frontGroup := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Registry)
	frontGroup.POST("/auth/verify", authHandler.Verify)

	authed := frontGroup.Group("")
	authed.Use(codeAuthMiddleware(deps.Registry))

	usersHandler := handlers.NewUsersHandler(deps.DB)
	authed.GET("/users/me", usersHandler.Me)
	authed.GET("/users/credits", usersHandler.Credits)

	uploadsHandler := handlers.NewUploadsHandler(deps.Store)
	authed.POST("/uploads", uploadsHandler.Create)

	generateHandler := handlers.NewGenerateHandler(deps.DB, deps.Catalog, deps.Ledger, deps.Invoker, deps.Store, deps.Recorder, deps.Limiter)
	authed.POST("/generate", generateHandler.Generate)
	authed.POST("/generations/ai-edit", generateHandler.AIEdit)
	authed.POST("/generations/collage", generateHandler.Collage)

	historyHandler := handlers.NewHistoryHandler(deps.Recorder, deps.Store)
	authed.GET("/generations/history", historyHandler.List)
	authed.GET("/generations/history/:id", historyHandler.Get)
	authed.GET("/generations/download/:filename", historyHandler.Download)

	casesHandler := handlers.NewCasesHandler(deps.DB)
	authed.GET("/cases", casesHandler.List)
	authed.GET("/cases/recommend", casesHandler.Recommend)

	assistantsHandler := handlers.NewAssistantsHandler(deps.DB)
	authed.GET("/assistants", assistantsHandler.List)
	authed.POST("/assistants", assistantsHandler.Create)
	authed.PUT("/assistants/:id", assistantsHandler.Update)
	authed.DELETE("/assistants/:id", assistantsHandler.Delete)
	authed.GET("/assistants/categories", assistantsHandler.Categories)
	authed.POST("/assistants/:id/favorite", assistantsHandler.Favorite)
	authed.DELETE("/assistants/:id/favorite", assistantsHandler.Unfavorite)
	authed.GET("/assistants/:id/comments", assistantsHandler.Comments)
	authed.POST("/assistants/:id/comments", assistantsHandler.AddComment)

	groupsHandler := handlers.NewFavoriteGroupsHandler(deps.DB)
	authed.GET("/assistants/favorites/groups", groupsHandler.List)
	authed.POST("/assistants/favorites/groups", groupsHandler.Create)
	authed.PUT("/assistants/favorites/groups/:gid", groupsHandler.Update)
	authed.DELETE("/assistants/favorites/groups/:gid", groupsHandler.Delete)
	authed.POST("/assistants/:id/favorite/group", groupsHandler.Assign)
}

// codeAuthMiddleware validates the bearer authorization code and loads it
// into context for handlers.
func codeAuthMiddleware(registry *authcode.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		codeValue := bearerCode(c)
		if codeValue == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization code"})
			return
		}

		code, errRequire := registry.RequireActive(c.Request.Context(), codeValue)
		if errRequire != nil {
			switch {
			case errors.Is(errRequire, authcode.ErrCodeNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization code"})
			case errors.Is(errRequire, authcode.ErrCodeExpired):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "authorization code expired"})
			case errors.Is(errRequire, authcode.ErrCodeDisabled):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "authorization code disabled"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify code"})
			}
			return
		}

		c.Set("authCode", code)
		c.Next()
	}
}

// bearerCode extracts the code from the Authorization header or the
// X-Auth-Code fallback used by multipart clients.
func bearerCode(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token != header {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Auth-Code"))
}
