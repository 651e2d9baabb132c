package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
)

// AssistantsHandler serves the assistant marketplace.
type AssistantsHandler struct {
	db *gorm.DB
}

// NewAssistantsHandler constructs an AssistantsHandler.
func NewAssistantsHandler(db *gorm.DB) *AssistantsHandler {
	return &AssistantsHandler{db: db}
}

// List returns marketplace assistants visible to the caller, filtered by
// category, type, and search term.
func (h *AssistantsHandler) List(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Assistant{}).
		Preload("Categories").
		Preload("Models").
		Where("status = ?", models.AssistantStatusActive).
		Where("type = ? OR visibility = ? OR owner_code = ?",
			models.AssistantTypeOfficial, models.AssistantVisibilityPublic, code.Code)

	if kind := strings.TrimSpace(c.Query("type")); kind != "" {
		q = q.Where("type = ?", kind)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		q = q.Joins("JOIN assistant_category_links acl ON acl.assistant_id = assistants.id").
			Joins("JOIN assistant_categories ac ON ac.id = acl.assistant_category_id").
			Where("ac.slug = ?", category)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "title"), pattern)
	}

	var total int64
	if errCount := q.Session(&gorm.Session{}).Distinct("assistants.id").Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count assistants"})
		return
	}

	var rows []models.Assistant
	errFind := q.Order("popularity DESC, assistants.id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assistants"})
		return
	}

	favoriteIDs, errFavs := h.favoriteSet(c, code.Code)
	if errFavs != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load favorites"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, assistantView(row, favoriteIDs[row.ID]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
}

// createAssistantRequest is the POST /assistants payload.
type createAssistantRequest struct {
	Slug        string   `json:"slug" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	PromptText  string   `json:"prompt_text" binding:"required"`
	CoverImage  string   `json:"cover_image"`
	Visibility  string   `json:"visibility"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories"` // Category slugs.
	Models      []string `json:"models"`     // Model names.
}

// Create adds a custom assistant owned by the caller.
func (h *AssistantsHandler) Create(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req createAssistantRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug, title and prompt_text are required"})
		return
	}
	visibility := req.Visibility
	if visibility != models.AssistantVisibilityPrivate {
		visibility = models.AssistantVisibilityPublic
	}

	row := models.Assistant{
		Slug:        strings.TrimSpace(req.Slug),
		Title:       strings.TrimSpace(req.Title),
		Type:        models.AssistantTypeCustom,
		OwnerCode:   code.Code,
		Visibility:  visibility,
		Status:      models.AssistantStatusActive,
		Description: req.Description,
		PromptText:  req.PromptText,
		CoverImage:  req.CoverImage,
		Tags:        marshalTags(req.Tags),
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errLinks := h.resolveLinks(tx, &row, req.Categories, req.Models); errLinks != nil {
			return errLinks
		}
		return tx.Create(&row).Error
	})
	if errTx != nil {
		if isUniqueViolation(errTx) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create assistant"})
		return
	}
	c.JSON(http.StatusOK, assistantView(row, nil))
}

// Update modifies a custom assistant owned by the caller.
func (h *AssistantsHandler) Update(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	row, ok := h.loadOwned(c, code.Code)
	if !ok {
		return
	}

	var req createAssistantRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if title := strings.TrimSpace(req.Title); title != "" {
		row.Title = title
	}
	if req.PromptText != "" {
		row.PromptText = req.PromptText
	}
	row.Description = req.Description
	if req.CoverImage != "" {
		row.CoverImage = req.CoverImage
	}
	if req.Visibility == models.AssistantVisibilityPrivate || req.Visibility == models.AssistantVisibilityPublic {
		row.Visibility = req.Visibility
	}
	if req.Tags != nil {
		row.Tags = marshalTags(req.Tags)
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if req.Categories != nil || req.Models != nil {
			if errLinks := h.resolveLinks(tx, row, req.Categories, req.Models); errLinks != nil {
				return errLinks
			}
			if errCats := tx.Model(row).Association("Categories").Replace(row.Categories); errCats != nil {
				return errCats
			}
			if errModels := tx.Model(row).Association("Models").Replace(row.Models); errModels != nil {
				return errModels
			}
		}
		return tx.Save(row).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update assistant"})
		return
	}
	c.JSON(http.StatusOK, assistantView(*row, nil))
}

// Delete archives a custom assistant owned by the caller.
func (h *AssistantsHandler) Delete(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	row, ok := h.loadOwned(c, code.Code)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Assistant{}).
		Where("id = ?", row.ID).
		Update("status", models.AssistantStatusArchived).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete assistant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Categories lists the category dictionary.
func (h *AssistantsHandler) Categories(c *gin.Context) {
	var rows []models.AssistantCategory
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("name ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load categories"})
		return
	}
	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, gin.H{"id": row.ID, "name": row.Name, "slug": row.Slug})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Favorite marks an assistant as a favorite of the caller.
func (h *AssistantsHandler) Favorite(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	assistant, ok := h.loadVisible(c, code.Code)
	if !ok {
		return
	}

	fav := models.AssistantFavorite{AuthCode: code.Code, AssistantID: assistant.ID}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&fav).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			c.JSON(http.StatusOK, gin.H{"favorited": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to favorite assistant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": true})
}

// Unfavorite removes a favorite.
func (h *AssistantsHandler) Unfavorite(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assistant id"})
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).
		Where("auth_code = ? AND assistant_id = ?", code.Code, id).
		Delete(&models.AssistantFavorite{}).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove favorite"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": false})
}

// Comments lists comments for a commentable assistant.
func (h *AssistantsHandler) Comments(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	assistant, ok := h.loadCommentable(c, code.Code)
	if !ok {
		return
	}

	var rows []models.AssistantComment
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("assistant_id = ?", assistant.ID).
		Order("created_at DESC, id DESC").
		Limit(200).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comments"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, gin.H{
			"id":         row.ID,
			"auth_code":  maskCode(row.AuthCode),
			"content":    row.Content,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// commentRequest is the POST comments payload.
type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddComment posts a comment on a commentable assistant.
func (h *AssistantsHandler) AddComment(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	assistant, ok := h.loadCommentable(c, code.Code)
	if !ok {
		return
	}

	var req commentRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	row := models.AssistantComment{
		AssistantID: assistant.ID,
		AuthCode:    code.Code,
		Content:     strings.TrimSpace(req.Content),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to post comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": row.ID, "created_at": row.CreatedAt})
}

// loadOwned loads the assistant from the :id param and checks ownership.
func (h *AssistantsHandler) loadOwned(c *gin.Context, ownerCode string) (*models.Assistant, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assistant id"})
		return nil, false
	}
	var row models.Assistant
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assistant not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assistant"})
		return nil, false
	}
	if row.Type != models.AssistantTypeCustom || row.OwnerCode != ownerCode {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this assistant"})
		return nil, false
	}
	return &row, true
}

// loadVisible loads the assistant from the :id param if the caller may see it.
func (h *AssistantsHandler) loadVisible(c *gin.Context, callerCode string) (*models.Assistant, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assistant id"})
		return nil, false
	}
	var row models.Assistant
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND status = ?", id, models.AssistantStatusActive).
		Where("type = ? OR visibility = ? OR owner_code = ?",
			models.AssistantTypeOfficial, models.AssistantVisibilityPublic, callerCode).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assistant not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assistant"})
		return nil, false
	}
	return &row, true
}

// loadCommentable restricts comments to official or public custom assistants.
func (h *AssistantsHandler) loadCommentable(c *gin.Context, callerCode string) (*models.Assistant, bool) {
	row, ok := h.loadVisible(c, callerCode)
	if !ok {
		return nil, false
	}
	if row.Type == models.AssistantTypeCustom && row.Visibility != models.AssistantVisibilityPublic {
		c.JSON(http.StatusForbidden, gin.H{"error": "assistant does not accept comments"})
		return nil, false
	}
	return row, true
}

// resolveLinks resolves category slugs and model names into associations.
func (h *AssistantsHandler) resolveLinks(tx *gorm.DB, row *models.Assistant, categorySlugs, modelNames []string) error {
	if categorySlugs != nil {
		var categories []models.AssistantCategory
		if errFind := tx.Where("slug IN ?", categorySlugs).Find(&categories).Error; errFind != nil {
			return errFind
		}
		row.Categories = categories
	}
	if modelNames != nil {
		var defs []models.ModelDefinition
		if errFind := tx.Where("name IN ? AND is_active = ?", modelNames, true).Find(&defs).Error; errFind != nil {
			return errFind
		}
		row.Models = defs
	}
	return nil
}

// favoriteRef carries the group assignment of one favorite.
type favoriteRef struct {
	GroupID   *uint64
	GroupName string
}

func (h *AssistantsHandler) favoriteSet(c *gin.Context, codeValue string) (map[uint64]*favoriteRef, error) {
	var favorites []models.AssistantFavorite
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Group").
		Where("auth_code = ?", codeValue).
		Find(&favorites).Error; errFind != nil {
		return nil, errFind
	}
	set := make(map[uint64]*favoriteRef, len(favorites))
	for _, fav := range favorites {
		ref := &favoriteRef{GroupID: fav.GroupID}
		if fav.Group != nil {
			ref.GroupName = fav.Group.Name
		}
		set[fav.AssistantID] = ref
	}
	return set, nil
}

func assistantView(row models.Assistant, fav *favoriteRef) gin.H {
	categories := make([]gin.H, 0, len(row.Categories))
	for _, category := range row.Categories {
		categories = append(categories, gin.H{"name": category.Name, "slug": category.Slug})
	}
	boundModels := make([]string, 0, len(row.Models))
	for _, model := range row.Models {
		boundModels = append(boundModels, model.Name)
	}
	var tags []string
	if len(row.Tags) > 0 {
		_ = json.Unmarshal(row.Tags, &tags)
	}
	view := gin.H{
		"id":          row.ID,
		"slug":        row.Slug,
		"title":       row.Title,
		"type":        row.Type,
		"visibility":  row.Visibility,
		"description": row.Description,
		"prompt_text": row.PromptText,
		"cover_image": row.CoverImage,
		"tags":        tags,
		"categories":  categories,
		"models":      boundModels,
		"popularity":  row.Popularity,
		"favorited":   fav != nil,
		"created_at":  row.CreatedAt,
	}
	if fav != nil && fav.GroupID != nil {
		view["favorite_group"] = gin.H{"id": *fav.GroupID, "name": fav.GroupName}
	}
	return view
}

func marshalTags(tags []string) datatypes.JSON {
	if tags == nil {
		tags = []string{}
	}
	raw, errMarshal := json.Marshal(tags)
	if errMarshal != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

// maskCode hides most of a code when shown to other users.
func maskCode(code string) string {
	if len(code) <= 6 {
		return "***"
	}
	return code[:4] + "****" + code[len(code)-2:]
}

// isUniqueViolation detects duplicate-key failures across dialects.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
