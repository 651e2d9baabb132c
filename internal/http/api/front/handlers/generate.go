package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/credit"
	"github.com/lumagen/lumagen/internal/generation"
	"github.com/lumagen/lumagen/internal/history"
	"github.com/lumagen/lumagen/internal/modelcatalog"
	"github.com/lumagen/lumagen/internal/models"
	"github.com/lumagen/lumagen/internal/ratelimit"
	"github.com/lumagen/lumagen/internal/settings"
	"github.com/lumagen/lumagen/internal/storage"
)

// Generation module names used in history records.
const (
	moduleGenerate = "generate"
	moduleAIEdit   = "ai-edit"
	moduleCollage  = "collage"
)

const (
	maxOutputCount = 4
	maxEditImages  = 5
	minCanvasSize  = 512
	maxCanvasSize  = 2048
)

// GenerateHandler serves the three generation endpoints. All of them run
// the same protocol: resolve cost, pre-check affordability, invoke the
// provider, deduct only on success, then record history.
type GenerateHandler struct {
	db       *gorm.DB
	catalog  *modelcatalog.Catalog
	ledger   *credit.Ledger
	invoker  generation.Invoker
	store    storage.Store
	recorder *history.Recorder
	limiter  *ratelimit.Manager
}

// NewGenerateHandler constructs a GenerateHandler.
func NewGenerateHandler(db *gorm.DB, catalog *modelcatalog.Catalog, ledger *credit.Ledger, invoker generation.Invoker, store storage.Store, recorder *history.Recorder, limiter *ratelimit.Manager) *GenerateHandler {
	return &GenerateHandler{
		db:       db,
		catalog:  catalog,
		ledger:   ledger,
		invoker:  invoker,
		store:    store,
		recorder: recorder,
		limiter:  limiter,
	}
}

// generateRequest is the POST /generate payload.
type generateRequest struct {
	ModelName   string   `json:"model_name"`
	Prompt      string   `json:"prompt" binding:"required"`
	OutputCount int      `json:"output_count"`
	InputImages []string `json:"input_images"`
}

// Generate runs a direct text(+images)-to-media generation.
func (h *GenerateHandler) Generate(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req generateRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	if req.OutputCount < 1 {
		req.OutputCount = 1
	}
	if req.OutputCount > maxOutputCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("output_count must be between 1 and %d", maxOutputCount)})
		return
	}

	inputs := make([][]byte, 0, len(req.InputImages))
	inputNames := make([]string, 0, len(req.InputImages))
	for _, name := range req.InputImages {
		data, errLoad := h.loadUpload(name)
		if errLoad != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown input image %s", name)})
			return
		}
		inputs = append(inputs, data)
		inputNames = append(inputNames, name)
	}

	h.run(c, code, pipelineInput{
		module:      moduleGenerate,
		modelName:   req.ModelName,
		prompt:      strings.TrimSpace(req.Prompt),
		outputCount: req.OutputCount,
		inputImages: inputs,
		inputNames:  inputNames,
	})
}

// AIEdit runs a multi-image edit from multipart uploads.
func (h *GenerateHandler) AIEdit(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	inputs, inputNames, ok := h.readMultipartImages(c, 1, maxEditImages)
	if !ok {
		return
	}

	h.run(c, code, pipelineInput{
		module:      moduleAIEdit,
		modelName:   c.PostForm("model_name"),
		prompt:      prompt,
		outputCount: 1,
		inputImages: inputs,
		inputNames:  inputNames,
	})
}

// Collage stitches multiple images onto a fixed-size canvas.
func (h *GenerateHandler) Collage(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	width := formIntDefault(c, "canvas_width", 1024)
	height := formIntDefault(c, "canvas_height", 1024)
	if width < minCanvasSize || width > maxCanvasSize || height < minCanvasSize || height > maxCanvasSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("canvas size must be between %dx%d and %dx%d", minCanvasSize, minCanvasSize, maxCanvasSize, maxCanvasSize)})
		return
	}

	inputs, inputNames, ok := h.readMultipartImages(c, 1, maxEditImages)
	if !ok {
		return
	}

	collagePrompt := fmt.Sprintf("Arrange these images onto a single %dx%d canvas. %s", width, height, prompt)
	h.run(c, code, pipelineInput{
		module:      moduleCollage,
		modelName:   c.PostForm("model_name"),
		prompt:      collagePrompt,
		outputCount: 1,
		inputImages: inputs,
		inputNames:  inputNames,
	})
}

// pipelineInput carries one normalized generation request.
type pipelineInput struct {
	module      string
	modelName   string
	prompt      string
	outputCount int
	inputImages [][]byte
	inputNames  []string
}

// run executes the shared generation protocol for one request.
func (h *GenerateHandler) run(c *gin.Context, code *models.AuthCode, input pipelineInput) {
	ctx := c.Request.Context()

	if h.limiter != nil {
		limited, errLimit := h.limiter.Allow(ctx, ratelimit.KeyForCode(code.Code))
		if errLimit == nil && !limited.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "reset": limited.Reset})
			return
		}
	}

	modelName := strings.TrimSpace(input.modelName)
	if modelName == "" {
		modelName = settings.StringValue(settings.DefaultImageModelKey, settings.DefaultImageModel)
	}
	model, errModel := h.catalog.LookupActive(ctx, modelName)
	if errModel != nil {
		if !respondCreditError(c, errModel) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve model"})
		}
		return
	}

	unitCost := credit.ResolveUnitCost(model)
	required := credit.RequiredCredits(unitCost, input.outputCount)

	// Pre-check against the caller's snapshot. The authoritative check
	// happens again inside Deduct after the provider call succeeds.
	if !credit.Affordable(code, required) {
		balances := credit.BalancesOf(code)
		respondCreditError(c, &credit.InsufficientCreditsError{
			Required:        required,
			TeamBalance:     balances.Team,
			PersonalBalance: balances.Personal,
		})
		return
	}

	generationID := uuid.NewString()
	started := time.Now()
	result, errInvoke := h.invoker.Generate(ctx, generation.Request{
		Model:       model.Name,
		Prompt:      input.prompt,
		InputImages: input.inputImages,
		OutputCount: input.outputCount,
	})
	elapsedMS := time.Since(started).Milliseconds()
	if errInvoke != nil {
		log.WithError(errInvoke).WithFields(log.Fields{
			"module": input.module,
			"model":  model.Name,
		}).Warn("generation failed, no credits charged")
		h.record(c, history.Entry{
			GenerationID: generationID,
			AuthCode:     code.Code,
			ModuleName:   input.module,
			MediaType:    model.MediaType,
			ModelName:    model.Name,
			PromptText:   input.prompt,
			InputImages:  input.inputNames,
			OutputCount:  input.outputCount,
			ProcessingMS: elapsedMS,
			Status:       models.GenerationStatusFailed,
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed", "generation_id": generationID})
		return
	}

	outputNames := make([]string, 0, len(result.Artifacts))
	for _, artifact := range result.Artifacts {
		name, errSave := h.store.SaveOutput(artifact.Data, artifact.Ext)
		if errSave != nil {
			log.WithError(errSave).Error("failed to persist generated artifact")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store output"})
			return
		}
		outputNames = append(outputNames, name)
	}

	// Pay on success. A failed deduction means the artifact is not
	// delivered even though the provider call already happened.
	if _, errDeduct := h.ledger.Deduct(ctx, code.ID, required, input.module); errDeduct != nil {
		h.record(c, history.Entry{
			GenerationID: generationID,
			AuthCode:     code.Code,
			ModuleName:   input.module,
			MediaType:    model.MediaType,
			ModelName:    model.Name,
			PromptText:   input.prompt,
			InputImages:  input.inputNames,
			OutputCount:  input.outputCount,
			ProcessingMS: elapsedMS,
			Status:       models.GenerationStatusFailed,
		})
		if !respondCreditError(c, errDeduct) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to charge credits"})
		}
		return
	}

	h.record(c, history.Entry{
		GenerationID: generationID,
		AuthCode:     code.Code,
		ModuleName:   input.module,
		MediaType:    model.MediaType,
		ModelName:    model.Name,
		PromptText:   input.prompt,
		InputImages:  input.inputNames,
		OutputImages: outputNames,
		OutputCount:  input.outputCount,
		CreditsUsed:  required,
		ProcessingMS: elapsedMS,
		Status:       models.GenerationStatusCompleted,
	})

	outputs := make([]gin.H, 0, len(outputNames))
	for _, name := range outputNames {
		outputs = append(outputs, gin.H{
			"filename":     name,
			"download_url": "/v0/front/generations/download/" + name,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"generation_id":   generationID,
		"module":          input.module,
		"model_name":      model.Name,
		"credits_used":    required,
		"processing_ms":   elapsedMS,
		"status":          models.GenerationStatusCompleted,
		"text_response":   result.Text,
		"output_images":   outputs,
		"output_count":    input.outputCount,
		"input_images":    input.inputNames,
	})
}

func (h *GenerateHandler) record(c *gin.Context, entry history.Entry) {
	if errRecord := h.recorder.Record(c.Request.Context(), entry); errRecord != nil {
		log.WithError(errRecord).Warn("failed to record generation history")
	}
}

// loadUpload reads a previously uploaded input image by stored name.
func (h *GenerateHandler) loadUpload(name string) ([]byte, error) {
	path, errPath := h.store.UploadPath(name)
	if errPath != nil {
		return nil, errPath
	}
	return readFileLimited(path)
}

// readMultipartImages reads image files from the "images" form field and
// persists them as uploads so history can reference them.
func (h *GenerateHandler) readMultipartImages(c *gin.Context, min, max int) ([][]byte, []string, bool) {
	form, errForm := c.MultipartForm()
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return nil, nil, false
	}
	files := form.File["images"]
	if len(files) < min || len(files) > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("image count must be between %d and %d", min, max)})
		return nil, nil, false
	}

	inputs := make([][]byte, 0, len(files))
	names := make([]string, 0, len(files))
	for _, header := range files {
		if !isSupportedImageName(header.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file %s is not a supported image", header.Filename)})
			return nil, nil, false
		}
		data, errRead := readMultipartFile(header)
		if errRead != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read file %s", header.Filename)})
			return nil, nil, false
		}
		name, errSave := h.store.SaveUpload(data, header.Filename)
		if errSave != nil {
			log.WithError(errSave).Error("failed to persist input image")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store input image"})
			return nil, nil, false
		}
		inputs = append(inputs, data)
		names = append(names, name)
	}
	return inputs, names, true
}

func readFileLimited(path string) ([]byte, error) {
	file, errOpen := os.Open(path)
	if errOpen != nil {
		return nil, errOpen
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > maxUploadBytes {
		return nil, fmt.Errorf("file too large")
	}
	file, errOpen := header.Open()
	if errOpen != nil {
		return nil, errOpen
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
}

func formIntDefault(c *gin.Context, field string, fallback int) int {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return fallback
	}
	parsed, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return fallback
	}
	return parsed
}
