package front

import (
	"encoding/json"
	"net/http"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

type caseListResp struct {
	Items []struct {
		ID         uint64   `json:"id"`
		Category   string   `json:"category"`
		Title      string   `json:"title"`
		ModeType   string   `json:"mode_type"`
		Popularity int64    `json:"popularity"`
		Tags       []string `json:"tags"`
		MatchScore int      `json:"match_score"`
	} `json:"items"`
}

func seedTemplateCase(t *testing.T, conn *gorm.DB, row models.TemplateCase) models.TemplateCase {
	t.Helper()
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed template case: %v", errCreate)
	}
	return row
}

func decodeCaseList(t *testing.T, body []byte) caseListResp {
	t.Helper()
	var resp caseListResp
	if errDecode := json.Unmarshal(body, &resp); errDecode != nil {
		t.Fatalf("decode case list: %v", errDecode)
	}
	return resp
}

func TestCasesListFiltersAndOrdering(t *testing.T) {
	conn := openFrontTestDB(t)
	r := newFrontTestRouter(t, conn, &fakeInvoker{}, 0)
	seedFrontCode(t, conn, "LG-CASES", 0, nil)

	seedTemplateCase(t, conn, models.TemplateCase{
		Category:   "Art",
		Title:      "Watercolor Landscape",
		ModeType:   models.CaseModeMulti,
		PromptText: "blend into a watercolor landscape",
		Popularity: 89,
	})
	seedTemplateCase(t, conn, models.TemplateCase{
		Category:   "Design",
		Title:      "Product Poster",
		ModeType:   models.CaseModePuzzle,
		PromptText: "arrange products on a poster grid",
		Popularity: 178,
	})
	seedTemplateCase(t, conn, models.TemplateCase{
		Category:   "Art",
		Title:      "Oil Portrait",
		ModeType:   models.CaseModeMulti,
		PromptText: "merge faces into an oil portrait",
		Popularity: 240,
	})

	w := doJSON(t, r, http.MethodGet, "/v0/front/cases", "LG-CASES", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list cases: %d body=%s", w.Code, w.Body.String())
	}
	all := decodeCaseList(t, w.Body.Bytes())
	if len(all.Items) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(all.Items))
	}
	if all.Items[0].Title != "Oil Portrait" || all.Items[1].Title != "Product Poster" {
		t.Fatalf("expected popularity ordering, got %q then %q", all.Items[0].Title, all.Items[1].Title)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/front/cases?category=Art", "LG-CASES", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("filter by category: %d body=%s", w.Code, w.Body.String())
	}
	art := decodeCaseList(t, w.Body.Bytes())
	if len(art.Items) != 2 {
		t.Fatalf("expected 2 Art cases, got %d", len(art.Items))
	}
	for _, item := range art.Items {
		if item.Category != "Art" {
			t.Fatalf("category filter leaked %q", item.Category)
		}
	}

	w = doJSON(t, r, http.MethodGet, "/v0/front/cases?mode=puzzle", "LG-CASES", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("filter by mode: %d body=%s", w.Code, w.Body.String())
	}
	puzzle := decodeCaseList(t, w.Body.Bytes())
	if len(puzzle.Items) != 1 || puzzle.Items[0].Title != "Product Poster" {
		t.Fatalf("unexpected puzzle cases: %+v", puzzle.Items)
	}
}

func TestCasesRecommendMatchesPrompt(t *testing.T) {
	conn := openFrontTestDB(t)
	r := newFrontTestRouter(t, conn, &fakeInvoker{}, 0)
	seedFrontCode(t, conn, "LG-REC", 0, nil)

	seedTemplateCase(t, conn, models.TemplateCase{
		Category:    "Art",
		Title:       "Watercolor Landscape",
		ModeType:    models.CaseModeMulti,
		Description: "soft watercolor rendering of scenery",
		PromptText:  "blend the photos into a watercolor landscape painting",
		Tags:        datatypes.JSON([]byte(`["watercolor","landscape"]`)),
		Popularity:  89,
	})
	seedTemplateCase(t, conn, models.TemplateCase{
		Category:   "Design",
		Title:      "Product Poster",
		ModeType:   models.CaseModePuzzle,
		PromptText: "arrange products on a poster grid",
		Tags:       datatypes.JSON([]byte(`["poster","product"]`)),
		Popularity: 178,
	})

	w := doJSON(t, r, http.MethodGet, "/v0/front/cases/recommend?prompt=watercolor+painting+of+a+mountain+landscape", "LG-REC", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recommend: %d body=%s", w.Code, w.Body.String())
	}
	resp := decodeCaseList(t, w.Body.Bytes())
	if len(resp.Items) != 1 {
		t.Fatalf("expected only the matching case, got %d items", len(resp.Items))
	}
	if resp.Items[0].Title != "Watercolor Landscape" {
		t.Fatalf("expected watercolor case first, got %q", resp.Items[0].Title)
	}
	if resp.Items[0].MatchScore <= 0 {
		t.Fatalf("expected positive match score, got %d", resp.Items[0].MatchScore)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/front/cases/recommend", "LG-REC", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without prompt, got %d", w.Code)
	}
}
