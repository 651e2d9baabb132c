package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
	"github.com/lumagen/lumagen/internal/security"
)

// AuthCodeHandler manages authorization codes.
type AuthCodeHandler struct {
	db *gorm.DB
}

// NewAuthCodeHandler constructs an AuthCodeHandler.
func NewAuthCodeHandler(db *gorm.DB) *AuthCodeHandler {
	return &AuthCodeHandler{db: db}
}

// List returns a page of codes, optionally filtered by status or search.
func (h *AuthCodeHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.AuthCode{}).Preload("Team")
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "code"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count codes"})
		return
	}

	var rows []models.AuthCode
	if errFind := q.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load codes"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, authCodeView(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
}

// createAuthCodeRequest is the POST payload. A custom code may be supplied;
// otherwise one is generated.
type createAuthCodeRequest struct {
	Code       string     `json:"code"`
	Credits    int64      `json:"credits"`
	ExpireTime *time.Time `json:"expire_time"`
	TeamID     *uint64    `json:"team_id"`
	TeamRole   string     `json:"team_role"`
}

// Create issues a new authorization code.
func (h *AuthCodeHandler) Create(c *gin.Context) {
	var req createAuthCodeRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Credits < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits must not be negative"})
		return
	}

	codeValue := strings.TrimSpace(req.Code)
	if codeValue == "" {
		generated, errGen := security.GenerateAuthCode()
		if errGen != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate code"})
			return
		}
		codeValue = generated
	}

	role := req.TeamRole
	if role != models.TeamRoleAdmin {
		role = models.TeamRoleMember
	}
	if req.TeamID != nil {
		var team models.Team
		if errTeam := h.db.WithContext(c.Request.Context()).First(&team, *req.TeamID).Error; errTeam != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "team not found"})
			return
		}
	}

	row := models.AuthCode{
		Code:       codeValue,
		Credits:    req.Credits,
		ExpireTime: req.ExpireTime,
		Status:     models.AuthCodeStatusActive,
		TeamID:     req.TeamID,
		TeamRole:   role,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "code already exists"})
		return
	}
	c.JSON(http.StatusOK, authCodeView(row))
}

// updateAuthCodeRequest is the PUT payload.
type updateAuthCodeRequest struct {
	Status     *string    `json:"status"`
	ExpireTime *time.Time `json:"expire_time"`
	TeamID     *uint64    `json:"team_id"`
	TeamRole   *string    `json:"team_role"`
}

// Update changes a code's status, expiry, or team membership.
func (h *AuthCodeHandler) Update(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}

	var req updateAuthCodeRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if req.Status != nil {
		switch *req.Status {
		case models.AuthCodeStatusActive, models.AuthCodeStatusExpired, models.AuthCodeStatusDisabled:
			updates["status"] = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	if req.ExpireTime != nil {
		updates["expire_time"] = req.ExpireTime
	}
	if req.TeamID != nil {
		if *req.TeamID == 0 {
			updates["team_id"] = nil
		} else {
			var team models.Team
			if errTeam := h.db.WithContext(c.Request.Context()).First(&team, *req.TeamID).Error; errTeam != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "team not found"})
				return
			}
			updates["team_id"] = *req.TeamID
		}
	}
	if req.TeamRole != nil {
		if *req.TeamRole != models.TeamRoleAdmin && *req.TeamRole != models.TeamRoleMember {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team role"})
			return
		}
		updates["team_role"] = *req.TeamRole
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.AuthCode{}).
		Where("id = ?", row.ID).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// topUpRequest is the top-up payload shared with teams.
type topUpRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// TopUp adds credits to a code's personal balance and records the
// adjustment.
func (h *AuthCodeHandler) TopUp(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}

	var req topUpRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "admin top-up"
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&models.AuthCode{}).
			Where("id = ?", row.ID).
			Update("credits", gorm.Expr("credits + ?", req.Amount)).Error; errUpdate != nil {
			return errUpdate
		}
		adj := models.CreditAdjustment{
			AuthCode: row.Code,
			Amount:   req.Amount,
			Reason:   reason,
		}
		return tx.Create(&adj).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to top up"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topped_up": req.Amount})
}

func (h *AuthCodeHandler) load(c *gin.Context) (*models.AuthCode, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code id"})
		return nil, false
	}
	var row models.AuthCode
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load code"})
		return nil, false
	}
	return &row, true
}

func authCodeView(row models.AuthCode) gin.H {
	view := gin.H{
		"id":         row.ID,
		"code":       row.Code,
		"credits":    row.Credits,
		"status":     row.Status,
		"team_role":  row.TeamRole,
		"created_at": row.CreatedAt,
	}
	if row.ExpireTime != nil {
		view["expire_time"] = row.ExpireTime
	}
	if row.TeamID != nil {
		view["team_id"] = *row.TeamID
	}
	if row.Team != nil {
		view["team_name"] = row.Team.Name
	}
	return view
}
