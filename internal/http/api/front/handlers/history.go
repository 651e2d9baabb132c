package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/history"
	"github.com/lumagen/lumagen/internal/models"
	"github.com/lumagen/lumagen/internal/storage"
)

// HistoryHandler serves the caller's generation history and artifacts.
type HistoryHandler struct {
	recorder *history.Recorder
	store    storage.Store
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(recorder *history.Recorder, store storage.Store) *HistoryHandler {
	return &HistoryHandler{recorder: recorder, store: store}
}

// List returns a page of the caller's generation records.
func (h *HistoryHandler) List(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	rows, total, errList := h.recorder.List(c.Request.Context(), history.ListFilter{
		AuthCode:   code.Code,
		ModuleName: c.Query("module"),
		Page:       page,
		PageSize:   pageSize,
	})
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, historyItem(row))
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

// Get returns one generation record by ID.
func (h *HistoryHandler) Get(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	row, errGet := h.recorder.Get(c.Request.Context(), code.Code, c.Param("id"))
	if errGet != nil {
		if errors.Is(errGet, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load generation"})
		return
	}
	c.JSON(http.StatusOK, historyItem(*row))
}

// Download streams a generated artifact.
func (h *HistoryHandler) Download(c *gin.Context) {
	filename := c.Param("filename")
	path, errPath := h.store.OutputPath(filename)
	if errPath != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}
	if _, errStat := os.Stat(path); errStat != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.FileAttachment(path, filename)
}

func historyItem(row models.GenerationRecord) gin.H {
	outputs := history.DecodeNames(row.OutputImages)
	downloads := make([]gin.H, 0, len(outputs))
	for _, name := range outputs {
		downloads = append(downloads, gin.H{
			"filename":     name,
			"download_url": "/v0/front/generations/download/" + name,
		})
	}
	return gin.H{
		"generation_id": row.GenerationID,
		"module":        row.ModuleName,
		"media_type":    row.MediaType,
		"model_name":    row.ModelName,
		"prompt":        row.PromptText,
		"input_images":  history.DecodeNames(row.InputImages),
		"output_images": downloads,
		"output_count":  row.OutputCount,
		"credits_used":  row.CreditsUsed,
		"processing_ms": row.ProcessingMS,
		"status":        row.Status,
		"created_at":    row.CreatedAt,
	}
}
