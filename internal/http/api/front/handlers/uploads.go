package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/lumagen/lumagen/internal/storage"
)

// maxUploadBytes caps one uploaded file.
const maxUploadBytes = 20 << 20

// UploadsHandler stores user-provided input images.
type UploadsHandler struct {
	store storage.Store
}

// NewUploadsHandler constructs an UploadsHandler.
func NewUploadsHandler(store storage.Store) *UploadsHandler {
	return &UploadsHandler{store: store}
}

// Create accepts multipart image files and returns their stored names.
func (h *UploadsHandler) Create(c *gin.Context) {
	form, errForm := c.MultipartForm()
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	stored := make([]string, 0, len(files))
	for _, header := range files {
		if header.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		if !isSupportedImageName(header.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}
		file, errOpen := header.Open()
		if errOpen != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}
		data, errRead := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		_ = file.Close()
		if errRead != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}
		name, errSave := h.store.SaveUpload(data, header.Filename)
		if errSave != nil {
			log.WithError(errSave).Error("uploads: failed to persist file")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}
		stored = append(stored, name)
	}

	c.JSON(http.StatusOK, gin.H{"files": stored})
}

// isSupportedImageName gates uploads by extension.
func isSupportedImageName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
