// Package history persists and serves generation audit records.
package history

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// Recorder writes and queries generation records.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a recorder bound to the given database handle.
func NewRecorder(conn *gorm.DB) *Recorder {
	return &Recorder{db: conn}
}

// Entry is the input for one recorded generation.
type Entry struct {
	GenerationID string
	AuthCode     string
	ModuleName   string
	MediaType    string
	ModelName    string
	PromptText   string
	InputImages  []string
	OutputImages []string
	OutputCount  int
	CreditsUsed  int64
	ProcessingMS int64
	Status       string
}

// Record persists one generation entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.Status == "" {
		entry.Status = models.GenerationStatusCompleted
	}
	if entry.MediaType == "" {
		entry.MediaType = models.MediaTypeImage
	}
	row := models.GenerationRecord{
		GenerationID: entry.GenerationID,
		AuthCode:     entry.AuthCode,
		ModuleName:   entry.ModuleName,
		MediaType:    entry.MediaType,
		ModelName:    entry.ModelName,
		PromptText:   entry.PromptText,
		InputImages:  marshalNames(entry.InputImages),
		OutputImages: marshalNames(entry.OutputImages),
		OutputCount:  entry.OutputCount,
		CreditsUsed:  entry.CreditsUsed,
		ProcessingMS: entry.ProcessingMS,
		Status:       entry.Status,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListFilter narrows a history query.
type ListFilter struct {
	AuthCode   string
	ModuleName string
	Page       int
	PageSize   int
}

// List returns a page of records for one code, newest first, with the
// total row count matching the filter.
func (r *Recorder) List(ctx context.Context, filter ListFilter) ([]models.GenerationRecord, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := r.db.WithContext(ctx).Model(&models.GenerationRecord{}).
		Where("auth_code = ?", filter.AuthCode)
	if module := strings.TrimSpace(filter.ModuleName); module != "" {
		q = q.Where("module_name = ?", module)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, errCount
	}

	var rows []models.GenerationRecord
	errFind := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if errFind != nil {
		return nil, 0, errFind
	}
	return rows, total, nil
}

// Get loads one record by generation ID scoped to a code.
func (r *Recorder) Get(ctx context.Context, authCode, generationID string) (*models.GenerationRecord, error) {
	var row models.GenerationRecord
	errFind := r.db.WithContext(ctx).
		Where("auth_code = ? AND generation_id = ?", authCode, generationID).
		First(&row).Error
	if errFind != nil {
		return nil, errFind
	}
	return &row, nil
}

func marshalNames(names []string) datatypes.JSON {
	if len(names) == 0 {
		names = []string{}
	}
	raw, errMarshal := json.Marshal(names)
	if errMarshal != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

// DecodeNames parses a stored JSON artifact name list.
func DecodeNames(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if errUnmarshal := json.Unmarshal(raw, &names); errUnmarshal != nil {
		return nil
	}
	return names
}
