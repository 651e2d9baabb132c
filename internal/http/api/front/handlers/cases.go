package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/gallery"
	"github.com/lumagen/lumagen/internal/models"
)

const (
	recommendDefaultLimit = 5
	recommendMaxLimit     = 20
)

// CasesHandler serves the template case gallery.
type CasesHandler struct {
	db *gorm.DB
}

// NewCasesHandler constructs a CasesHandler.
func NewCasesHandler(db *gorm.DB) *CasesHandler {
	return &CasesHandler{db: db}
}

// List returns gallery cases ordered by popularity, filtered by category
// and composition mode.
func (h *CasesHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.TemplateCase{})
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		q = q.Where("category = ?", category)
	}
	if mode := strings.TrimSpace(c.Query("mode")); mode != "" {
		q = q.Where("mode_type = ?", mode)
	}

	var rows []models.TemplateCase
	if errFind := q.Order("popularity DESC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cases"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, caseView(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Recommend matches gallery cases against the caller's prompt so the
// client can suggest proven prompts before a generation.
func (h *CasesHandler) Recommend(c *gin.Context) {
	prompt := strings.TrimSpace(c.Query("prompt"))
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(recommendDefaultLimit)))
	if limit < 1 || limit > recommendMaxLimit {
		limit = recommendDefaultLimit
	}

	var rows []models.TemplateCase
	if errFind := h.db.WithContext(c.Request.Context()).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cases"})
		return
	}

	ranked := gallery.Rank(rows, prompt, limit)
	items := make([]gin.H, 0, len(ranked))
	for _, match := range ranked {
		view := caseView(match.Case)
		view["match_score"] = match.Score
		items = append(items, view)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func caseView(row models.TemplateCase) gin.H {
	return gin.H{
		"id":            row.ID,
		"category":      row.Category,
		"title":         row.Title,
		"description":   row.Description,
		"preview_image": row.PreviewImage,
		"input_images":  decodeStringList(row.InputImages),
		"prompt_text":   row.PromptText,
		"tags":          decodeStringList(row.Tags),
		"popularity":    row.Popularity,
		"mode_type":     row.ModeType,
	}
}

func decodeStringList(raw []byte) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
