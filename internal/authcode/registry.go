// Package authcode resolves and validates authorization codes.
package authcode

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// Lookup and validation errors.
var (
	// ErrCodeNotFound indicates no such authorization code exists.
	ErrCodeNotFound = errors.New("authcode: code not found")
	// ErrCodeExpired indicates the code is past its expiry time.
	ErrCodeExpired = errors.New("authcode: code expired")
	// ErrCodeDisabled indicates the code was administratively disabled.
	ErrCodeDisabled = errors.New("authcode: code disabled")
)

// Registry loads authorization codes and enforces their lifecycle.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a registry bound to the given database handle.
func NewRegistry(conn *gorm.DB) *Registry {
	return &Registry{db: conn}
}

// Lookup loads a code with its team. When a stored-active code has passed
// its expiry, the stored status is flipped to expired before returning.
func (r *Registry) Lookup(ctx context.Context, codeValue string) (*models.AuthCode, error) {
	codeValue = strings.TrimSpace(codeValue)
	if codeValue == "" {
		return nil, ErrCodeNotFound
	}

	var code models.AuthCode
	errFind := r.db.WithContext(ctx).
		Preload("Team").
		Where("code = ?", codeValue).
		First(&code).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, errFind
	}

	now := time.Now().UTC()
	if code.Status == models.AuthCodeStatusActive && code.ExpireTime != nil && !code.ExpireTime.After(now) {
		code.Status = models.AuthCodeStatusExpired
		if errUpdate := r.db.WithContext(ctx).
			Model(&models.AuthCode{}).
			Where("id = ? AND status = ?", code.ID, models.AuthCodeStatusActive).
			Update("status", models.AuthCodeStatusExpired).Error; errUpdate != nil {
			log.WithError(errUpdate).WithField("code_id", code.ID).
				Warn("authcode: failed to persist expiry transition")
		}
	}
	return &code, nil
}

// RequireActive loads a code and rejects it unless it is usable right now.
func (r *Registry) RequireActive(ctx context.Context, codeValue string) (*models.AuthCode, error) {
	code, errLookup := r.Lookup(ctx, codeValue)
	if errLookup != nil {
		return nil, errLookup
	}
	switch code.Status {
	case models.AuthCodeStatusActive:
		return code, nil
	case models.AuthCodeStatusExpired:
		return nil, ErrCodeExpired
	case models.AuthCodeStatusDisabled:
		return nil, ErrCodeDisabled
	default:
		return nil, ErrCodeDisabled
	}
}
