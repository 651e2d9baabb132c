// Package gallery maintains the template case gallery: curated examples
// users browse for inspiration and prompt reuse.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// builtinCases is the starter gallery seeded on first run. Admins can
// reprice popularity or add rows later; seeding never overwrites them.
var builtinCases = []models.TemplateCase{
	{
		Category:     "Sci-Fi",
		Title:        "Space Warrior Composite",
		Description:  "Blend a portrait with a sci-fi backdrop into a futuristic warrior scene",
		PreviewImage: "/static/previews/space_warrior.jpg",
		InputImages:  datatypes.JSON(`["/static/examples/person.jpg","/static/examples/space_bg.jpg"]`),
		PromptText:   "Composite the person from the first image into the space backdrop from the second, adding sci-fi armor and glowing light effects",
		Tags:         datatypes.JSON(`["sci-fi","composite","warrior","space"]`),
		Popularity:   156,
		ModeType:     models.CaseModeMulti,
	},
	{
		Category:     "Art",
		Title:        "Watercolor Landscape",
		Description:  "Turn an ordinary photo into a watercolor painting",
		PreviewImage: "/static/previews/watercolor.jpg",
		InputImages:  datatypes.JSON(`["/static/examples/landscape.jpg"]`),
		PromptText:   "Convert this landscape photo into a watercolor painting with soft tones and visible brush strokes",
		Tags:         datatypes.JSON(`["watercolor","art","landscape"]`),
		Popularity:   89,
		ModeType:     models.CaseModeMulti,
	},
	{
		Category:     "Cartoon",
		Title:        "Cartoon Avatar",
		Description:  "Turn a real portrait into a cute cartoon avatar",
		PreviewImage: "/static/previews/cartoon_avatar.jpg",
		InputImages:  datatypes.JSON(`["/static/examples/portrait.jpg"]`),
		PromptText:   "Convert this portrait into a cute cartoon style, keeping the facial features with big eyes and soft colors",
		Tags:         datatypes.JSON(`["cartoon","avatar","portrait"]`),
		Popularity:   234,
		ModeType:     models.CaseModeMulti,
	},
	{
		Category:     "Design",
		Title:        "Multi-Element Poster",
		Description:  "Compose several design elements into one coherent poster",
		PreviewImage: "/static/previews/poster_design.jpg",
		InputImages:  datatypes.JSON(`["/static/examples/logo.png","/static/examples/text_element.png","/static/examples/bg_pattern.jpg"]`),
		PromptText:   "Arrange these design elements into a modern poster with balanced layout and matching colors",
		Tags:         datatypes.JSON(`["poster","design","collage"]`),
		Popularity:   178,
		ModeType:     models.CaseModePuzzle,
	},
}

// Seed inserts any missing built-in cases, keyed by title.
func Seed(ctx context.Context, conn *gorm.DB) error {
	for _, builtin := range builtinCases {
		var existing models.TemplateCase
		errFind := conn.WithContext(ctx).
			Where("title = ?", builtin.Title).
			First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}
		row := builtin
		if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return errCreate
		}
		log.WithField("case", row.Title).Info("gallery: seeded template case")
	}
	return nil
}

// ScoredCase pairs a template case with its prompt match score.
type ScoredCase struct {
	Case  models.TemplateCase
	Score int
}

// minKeywordLen drops filler words like "a" or "of" that would match
// every case.
const minKeywordLen = 3

// Rank scores cases against a user prompt. Every prompt keyword found in
// the case text counts one point; a case tag contained in the prompt
// counts two, since tags are deliberate labels. Cases with no overlap
// are dropped; ties break on popularity.
func Rank(rows []models.TemplateCase, prompt string, limit int) []ScoredCase {
	promptLower := strings.ToLower(strings.TrimSpace(prompt))
	keywords := make([]string, 0)
	for _, word := range strings.Fields(promptLower) {
		if len(word) >= minKeywordLen {
			keywords = append(keywords, word)
		}
	}
	if len(keywords) == 0 || limit <= 0 {
		return nil
	}

	scored := make([]ScoredCase, 0, len(rows))
	for _, row := range rows {
		caseText := strings.ToLower(row.Title + " " + row.Description + " " + row.PromptText)
		score := 0
		for _, keyword := range keywords {
			if strings.Contains(caseText, keyword) {
				score++
			}
		}
		for _, tag := range decodeTags(row.Tags) {
			if tag != "" && strings.Contains(promptLower, strings.ToLower(tag)) {
				score += 2
			}
		}
		if score > 0 {
			scored = append(scored, ScoredCase{Case: row, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Case.Popularity > scored[j].Case.Popularity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// decodeTags unpacks the JSON tag list, tolerating malformed rows.
func decodeTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if errUnmarshal := json.Unmarshal(raw, &tags); errUnmarshal != nil {
		return nil
	}
	return tags
}
