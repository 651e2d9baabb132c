package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// DashboardHandler serves admin dashboard analytics endpoints.
type DashboardHandler struct {
	db *gorm.DB // Database handle for generation analytics.
}

// NewDashboardHandler constructs a dashboard handler with database access.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// overviewResponse defines the overview payload.
type overviewResponse struct {
	ActiveCodes      int64   `json:"active_codes"`      // Authorization codes in active status.
	Teams            int64   `json:"teams"`             // Team count.
	ActiveModels     int64   `json:"active_models"`     // Callable model count.
	TotalGenerations int64   `json:"total_generations"` // All-time generation count.
	TodayGenerations int64   `json:"today_generations"` // Generations started today.
	GenerationsTrend float64 `json:"generations_trend"` // Trend vs yesterday.
	SuccessRate      float64 `json:"success_rate"`      // Today's success rate percentage.
	CreditsConsumed  int64   `json:"credits_consumed"`  // All-time credits deducted.
}

// Overview returns global counters and today's generation KPIs.
func (h *DashboardHandler) Overview(c *gin.Context) {
	loc := time.Local
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)

	ctx := c.Request.Context()
	var resp overviewResponse

	h.db.WithContext(ctx).Model(&models.AuthCode{}).
		Where("status = ?", models.AuthCodeStatusActive).
		Count(&resp.ActiveCodes)
	h.db.WithContext(ctx).Model(&models.Team{}).Count(&resp.Teams)
	h.db.WithContext(ctx).Model(&models.ModelDefinition{}).
		Where("is_active = ?", true).
		Count(&resp.ActiveModels)
	h.db.WithContext(ctx).Model(&models.GenerationRecord{}).Count(&resp.TotalGenerations)

	var todayStats struct {
		Total  int64
		Failed int64
	}
	h.db.WithContext(ctx).Model(&models.GenerationRecord{}).
		Where("created_at >= ?", today).
		Select(`COUNT(*) AS total, SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed`).
		Scan(&todayStats)

	var yesterdayTotal int64
	h.db.WithContext(ctx).Model(&models.GenerationRecord{}).
		Where("created_at >= ? AND created_at < ?", yesterday, today).
		Count(&yesterdayTotal)

	h.db.WithContext(ctx).Model(&models.GenerationRecord{}).
		Select("COALESCE(SUM(credits_used), 0)").
		Scan(&resp.CreditsConsumed)

	resp.TodayGenerations = todayStats.Total
	resp.GenerationsTrend = calcTrend(float64(yesterdayTotal), float64(todayStats.Total))
	resp.SuccessRate = 100.0
	if todayStats.Total > 0 {
		resp.SuccessRate = float64(todayStats.Total-todayStats.Failed) / float64(todayStats.Total) * 100
	}

	c.JSON(http.StatusOK, resp)
}

// consumptionPoint represents one day of credit consumption.
type consumptionPoint struct {
	Date        string `json:"date"`        // Day label, YYYY-MM-DD.
	Credits     int64  `json:"credits"`     // Credits deducted that day.
	Generations int64  `json:"generations"` // Completed generations that day.
}

// CreditConsumption returns daily credit consumption for the last 7 days.
func (h *DashboardHandler) CreditConsumption(c *gin.Context) {
	loc := time.Local
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	ctx := c.Request.Context()
	points := make([]consumptionPoint, 7)
	for i := 0; i < 7; i++ {
		dayStart := today.AddDate(0, 0, i-6)
		dayEnd := dayStart.AddDate(0, 0, 1)

		var credits int64
		h.db.WithContext(ctx).Model(&models.GenerationRecord{}).
			Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
			Select("COALESCE(SUM(credits_used), 0)").
			Scan(&credits)

		var count int64
		h.db.WithContext(ctx).Model(&models.GenerationRecord{}).
			Where("created_at >= ? AND created_at < ? AND status = ?", dayStart, dayEnd, models.GenerationStatusCompleted).
			Count(&count)

		points[i] = consumptionPoint{
			Date:        dayStart.Format("2006-01-02"),
			Credits:     credits,
			Generations: count,
		}
	}

	c.JSON(http.StatusOK, gin.H{"points": points})
}

// modelShareItem represents credit consumption share for one model.
type modelShareItem struct {
	Model      string  `json:"model"`      // Model identifier.
	Credits    int64   `json:"credits"`    // Credits deducted via this model.
	Percentage float64 `json:"percentage"` // Share of total credits.
}

// ModelDistribution returns credit consumption grouped by model.
func (h *DashboardHandler) ModelDistribution(c *gin.Context) {
	// modelCredits captures aggregated consumption per model.
	type modelCredits struct {
		ModelName string // Model identifier.
		Credits   int64  // Aggregated credits deducted.
	}
	var results []modelCredits
	h.db.WithContext(c.Request.Context()).Model(&models.GenerationRecord{}).
		Select("model_name, COALESCE(SUM(credits_used), 0) AS credits").
		Group("model_name").
		Order("credits DESC").
		Scan(&results)

	var total int64
	for _, r := range results {
		total += r.Credits
	}

	items := make([]modelShareItem, 0, len(results))
	for _, r := range results {
		pct := 0.0
		if total > 0 {
			pct = float64(r.Credits) / float64(total) * 100
		}
		items = append(items, modelShareItem{Model: r.ModelName, Credits: r.Credits, Percentage: pct})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// calcTrend computes percentage change from a previous value.
func calcTrend(prev, current float64) float64 {
	if prev == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - prev) / prev * 100
}
