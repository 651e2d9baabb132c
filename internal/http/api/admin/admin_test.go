package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/config"
	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
	"github.com/lumagen/lumagen/internal/security"
)

var adminTestDBSeq atomic.Int64

var adminTestJWT = config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}

func openAdminTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:admin_%d?mode=memory&cache=shared", adminTestDBSeq.Add(1))
	conn, errOpen := dbutil.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return conn
}

func newAdminTestRouter(t *testing.T, conn *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r, conn, adminTestJWT)
	return r
}

func seedAdmin(t *testing.T, conn *gorm.DB, username, password string, active bool) models.Admin {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	row := models.Admin{Username: username, Password: hash, Active: active}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed admin: %v", errCreate)
	}
	return row
}

func adminToken(t *testing.T, admin models.Admin) string {
	t.Helper()
	token, errGen := security.GenerateAdminToken(adminTestJWT.Secret, admin.ID, admin.Username, adminTestJWT.Expiry)
	if errGen != nil {
		t.Fatalf("generate token: %v", errGen)
	}
	return token
}

func doAdminJSON(t *testing.T, r *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, errMarshal := json.Marshal(payload)
		if errMarshal != nil {
			t.Fatalf("marshal payload: %v", errMarshal)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginIssuesToken(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	seedAdmin(t, conn, "root", "hunter22", true)

	w := doAdminJSON(t, r, http.MethodPost, "/v0/admin/auth/login", "", gin.H{
		"username": "root",
		"password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Token == "" || resp.Username != "root" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	claims, errParse := security.ParseAdminToken(adminTestJWT.Secret, resp.Token)
	if errParse != nil {
		t.Fatalf("parse issued token: %v", errParse)
	}
	if claims.Username != "root" {
		t.Fatalf("expected username claim root, got %q", claims.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	seedAdmin(t, conn, "root", "hunter22", true)

	w := doAdminJSON(t, r, http.MethodPost, "/v0/admin/auth/login", "", gin.H{
		"username": "root",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}

	w = doAdminJSON(t, r, http.MethodPost, "/v0/admin/auth/login", "", gin.H{
		"username": "nobody",
		"password": "hunter22",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestMiddlewareGatesRoutes(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	active := seedAdmin(t, conn, "root", "hunter22", true)
	disabled := seedAdmin(t, conn, "gone", "hunter22", false)

	w := doAdminJSON(t, r, http.MethodGet, "/v0/admin/models", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doAdminJSON(t, r, http.MethodGet, "/v0/admin/models", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}

	w = doAdminJSON(t, r, http.MethodGet, "/v0/admin/models", adminToken(t, disabled), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disabled admin, got %d", w.Code)
	}

	w = doAdminJSON(t, r, http.MethodGet, "/v0/admin/models", adminToken(t, active), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestAuthCodeCreateAndSearch(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	w := doAdminJSON(t, r, http.MethodPost, "/v0/admin/auth-codes", token, gin.H{
		"credits": 50,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 create, got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Code    string `json:"code"`
		Credits int64  `json:"credits"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if created.Code == "" || created.Credits != 50 {
		t.Fatalf("unexpected created code: %+v", created)
	}

	w = doAdminJSON(t, r, http.MethodPost, "/v0/admin/auth-codes", token, gin.H{
		"code": "LG-CUSTOM-CODE",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 custom create, got %d body=%s", w.Code, w.Body.String())
	}

	w = doAdminJSON(t, r, http.MethodGet, "/v0/admin/auth-codes?search=custom-code", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 list, got %d body=%s", w.Code, w.Body.String())
	}
	var list struct {
		Total int64 `json:"total"`
		Items []struct {
			Code string `json:"code"`
		} `json:"items"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &list); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].Code != "LG-CUSTOM-CODE" {
		t.Fatalf("search mismatch: %+v", list)
	}
}

func TestAuthCodeTopUpWritesAdjustment(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	code := models.AuthCode{Code: "LG-TOPUP", Credits: 10, Status: models.AuthCodeStatusActive}
	if errCreate := conn.Create(&code).Error; errCreate != nil {
		t.Fatalf("seed code: %v", errCreate)
	}

	w := doAdminJSON(t, r, http.MethodPost, fmt.Sprintf("/v0/admin/auth-codes/%d/top-up", code.ID), token, gin.H{
		"amount": 35,
		"reason": "invoice 1042",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded models.AuthCode
	if errFind := conn.First(&reloaded, code.ID).Error; errFind != nil {
		t.Fatalf("reload code: %v", errFind)
	}
	if reloaded.Credits != 45 {
		t.Fatalf("expected 45 credits after top-up, got %d", reloaded.Credits)
	}

	var adj models.CreditAdjustment
	if errFind := conn.Where("auth_code = ?", "LG-TOPUP").First(&adj).Error; errFind != nil {
		t.Fatalf("load adjustment: %v", errFind)
	}
	if adj.Amount != 35 || adj.Reason != "invoice 1042" {
		t.Fatalf("unexpected adjustment: amount=%d reason=%q", adj.Amount, adj.Reason)
	}

	w = doAdminJSON(t, r, http.MethodPost, fmt.Sprintf("/v0/admin/auth-codes/%d/top-up", code.ID), token, gin.H{
		"amount": -5,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", w.Code)
	}
}

func TestTeamTopUpWritesTeamAdjustment(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	team := models.Team{Name: "billing", Credits: 5}
	if errCreate := conn.Create(&team).Error; errCreate != nil {
		t.Fatalf("seed team: %v", errCreate)
	}

	w := doAdminJSON(t, r, http.MethodPost, fmt.Sprintf("/v0/admin/teams/%d/top-up", team.ID), token, gin.H{
		"amount": 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded models.Team
	if errFind := conn.First(&reloaded, team.ID).Error; errFind != nil {
		t.Fatalf("reload team: %v", errFind)
	}
	if reloaded.Credits != 105 {
		t.Fatalf("expected 105 credits, got %d", reloaded.Credits)
	}

	var adj models.CreditAdjustment
	if errFind := conn.Where("team_id = ?", team.ID).First(&adj).Error; errFind != nil {
		t.Fatalf("load adjustment: %v", errFind)
	}
	if adj.Amount != 100 || adj.AuthCode != "" {
		t.Fatalf("unexpected team adjustment: amount=%d auth_code=%q", adj.Amount, adj.AuthCode)
	}
}

func TestTeamDeleteGuardedByMembers(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	team := models.Team{Name: "occupied"}
	if errCreate := conn.Create(&team).Error; errCreate != nil {
		t.Fatalf("seed team: %v", errCreate)
	}
	member := models.AuthCode{Code: "LG-MEMBER", Status: models.AuthCodeStatusActive, TeamID: &team.ID}
	if errCreate := conn.Create(&member).Error; errCreate != nil {
		t.Fatalf("seed member: %v", errCreate)
	}

	w := doAdminJSON(t, r, http.MethodDelete, fmt.Sprintf("/v0/admin/teams/%d", team.ID), token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for occupied team, got %d", w.Code)
	}

	if errDetach := conn.Model(&models.AuthCode{}).Where("id = ?", member.ID).Update("team_id", nil).Error; errDetach != nil {
		t.Fatalf("detach member: %v", errDetach)
	}
	w = doAdminJSON(t, r, http.MethodDelete, fmt.Sprintf("/v0/admin/teams/%d", team.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after detaching member, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestModelDefinitionLifecycle(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	w := doAdminJSON(t, r, http.MethodPost, "/v0/admin/models", token, gin.H{
		"name":            "pix-new",
		"display_name":    "Pix New",
		"media_type":      "image",
		"credits_per_use": 12,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 create, got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint64 `json:"id"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}

	w = doAdminJSON(t, r, http.MethodPut, fmt.Sprintf("/v0/admin/models/%d", created.ID), token, gin.H{
		"discount_credit_cost": 6,
		"is_active":            false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 update, got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded models.ModelDefinition
	if errFind := conn.First(&reloaded, created.ID).Error; errFind != nil {
		t.Fatalf("reload model: %v", errFind)
	}
	if reloaded.DiscountCreditCost == nil || *reloaded.DiscountCreditCost != 6 {
		t.Fatalf("expected discount 6, got %v", reloaded.DiscountCreditCost)
	}
	if reloaded.IsActive {
		t.Fatalf("expected model deactivated")
	}

	w = doAdminJSON(t, r, http.MethodPut, fmt.Sprintf("/v0/admin/models/%d", created.ID), token, gin.H{
		"clear_discount": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 clear discount, got %d body=%s", w.Code, w.Body.String())
	}
	if errFind := conn.First(&reloaded, created.ID).Error; errFind != nil {
		t.Fatalf("reload model: %v", errFind)
	}
	if reloaded.DiscountCreditCost != nil {
		t.Fatalf("expected discount cleared, got %v", *reloaded.DiscountCreditCost)
	}
}

func TestDashboardOverviewCounts(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	code := models.AuthCode{Code: "LG-DASH", Credits: 5, Status: models.AuthCodeStatusActive}
	if errCreate := conn.Create(&code).Error; errCreate != nil {
		t.Fatalf("seed code: %v", errCreate)
	}
	records := []models.GenerationRecord{
		{GenerationID: "dash-1", AuthCode: "LG-DASH", ModuleName: "generate", ModelName: "pix", PromptText: "a", CreditsUsed: 10, Status: models.GenerationStatusCompleted},
		{GenerationID: "dash-2", AuthCode: "LG-DASH", ModuleName: "generate", ModelName: "pix", PromptText: "b", CreditsUsed: 4, Status: models.GenerationStatusCompleted},
		{GenerationID: "dash-3", AuthCode: "LG-DASH", ModuleName: "ai-edit", ModelName: "pix", PromptText: "c", Status: models.GenerationStatusFailed},
	}
	for i := range records {
		if errCreate := conn.Create(&records[i]).Error; errCreate != nil {
			t.Fatalf("seed record: %v", errCreate)
		}
	}

	w := doAdminJSON(t, r, http.MethodGet, "/v0/admin/dashboard/overview", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ActiveCodes      int64   `json:"active_codes"`
		TotalGenerations int64   `json:"total_generations"`
		TodayGenerations int64   `json:"today_generations"`
		SuccessRate      float64 `json:"success_rate"`
		CreditsConsumed  int64   `json:"credits_consumed"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.ActiveCodes != 1 || resp.TotalGenerations != 3 || resp.TodayGenerations != 3 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if resp.CreditsConsumed != 14 {
		t.Fatalf("expected 14 credits consumed, got %d", resp.CreditsConsumed)
	}
	if resp.SuccessRate < 66.0 || resp.SuccessRate > 67.0 {
		t.Fatalf("expected success rate around 66.7, got %f", resp.SuccessRate)
	}
}

func TestGenerationLogFilters(t *testing.T) {
	conn := openAdminTestDB(t)
	r := newAdminTestRouter(t, conn)
	token := adminToken(t, seedAdmin(t, conn, "root", "pw", true))

	records := []models.GenerationRecord{
		{GenerationID: "log-1", AuthCode: "LG-A", ModuleName: "generate", ModelName: "pix-alpha", PromptText: "a", Status: models.GenerationStatusCompleted},
		{GenerationID: "log-2", AuthCode: "LG-B", ModuleName: "collage", ModelName: "pix-beta", PromptText: "b", Status: models.GenerationStatusFailed},
	}
	for i := range records {
		if errCreate := conn.Create(&records[i]).Error; errCreate != nil {
			t.Fatalf("seed record: %v", errCreate)
		}
	}

	w := doAdminJSON(t, r, http.MethodGet, "/v0/admin/generations?auth_code=LG-A", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Total int64 `json:"total"`
		Items []struct {
			GenerationID string `json:"generation_id"`
		} `json:"items"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].GenerationID != "log-1" {
		t.Fatalf("auth_code filter mismatch: %+v", resp)
	}

	w = doAdminJSON(t, r, http.MethodGet, "/v0/admin/generations?search=BETA", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Total != 1 || resp.Items[0].GenerationID != "log-2" {
		t.Fatalf("search filter mismatch: %+v", resp)
	}
}
