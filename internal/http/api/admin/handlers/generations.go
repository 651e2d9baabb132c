package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/history"
	"github.com/lumagen/lumagen/internal/models"
)

// GenerationLogHandler exposes the generation audit log to administrators.
type GenerationLogHandler struct {
	db *gorm.DB
}

// NewGenerationLogHandler constructs a GenerationLogHandler.
func NewGenerationLogHandler(db *gorm.DB) *GenerationLogHandler {
	return &GenerationLogHandler{db: db}
}

// List returns a page of generation records across all codes. Supports
// filtering by auth code, module, status, and model name search.
func (h *GenerationLogHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.GenerationRecord{})
	if code := strings.TrimSpace(c.Query("auth_code")); code != "" {
		q = q.Where("auth_code = ?", code)
	}
	if module := strings.TrimSpace(c.Query("module")); module != "" {
		q = q.Where("module_name = ?", module)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "model_name"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count records"})
		return
	}

	var rows []models.GenerationRecord
	if errFind := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load records"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, generationLogItem(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
}

func generationLogItem(row models.GenerationRecord) gin.H {
	return gin.H{
		"generation_id": row.GenerationID,
		"auth_code":     row.AuthCode,
		"module":        row.ModuleName,
		"media_type":    row.MediaType,
		"model":         row.ModelName,
		"prompt":        row.PromptText,
		"input_images":  history.DecodeNames(row.InputImages),
		"output_images": history.DecodeNames(row.OutputImages),
		"output_count":  row.OutputCount,
		"credits_used":  row.CreditsUsed,
		"processing_ms": row.ProcessingMS,
		"status":        row.Status,
		"created_at":    row.CreatedAt,
	}
}
