package analysis

import (
	"strconv"
	"strings"

	"github.com/wpatrik14/newsaggregator/internal/model"
)

const (
	minScore     = 0
	maxScore     = 100
	neutralScore = 50

	maxCategories = 3
)

// labelSet is a closed enumeration with a synonym table and a neutral
// default. Normalization is case-fold, then exact match, then synonym lookup,
// then default. The tables are data, not branching logic.
type labelSet struct {
	canonical []string
	synonyms  map[string]string
	fallback  string
}

func (ls labelSet) normalize(raw string) string {
	needle := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
	if needle == "" {
		return ls.fallback
	}

	for _, value := range ls.canonical {
		if strings.ToLower(value) == needle {
			return value
		}
	}
	if mapped, ok := ls.synonyms[needle]; ok {
		return mapped
	}
	return ls.fallback
}

var (
	targetGenerations = labelSet{
		canonical: []string{"Gen Z", "Millennial", "Gen X", "Boomer", "All"},
		synonyms: map[string]string{
			"generation z": "Gen Z",
			"gen-z":        "Gen Z",
			"genz":         "Gen Z",
			"zoomer":       "Gen Z",
			"zoomers":      "Gen Z",
			"millennials":  "Millennial",
			"gen y":        "Millennial",
			"generation x": "Gen X",
			"gen-x":        "Gen X",
			"boomers":      "Boomer",
			"baby boomer":  "Boomer",
			"baby boomers": "Boomer",
			"everyone":     "All",
			"general":      "All",
			"all ages":     "All",
		},
		fallback: "All",
	}

	politicalLeanings = labelSet{
		canonical: []string{"Left", "Center-Left", "Center", "Center-Right", "Right"},
		synonyms: map[string]string{
			"liberal":      "Left",
			"progressive":  "Left",
			"far left":     "Left",
			"centre-left":  "Center-Left",
			"center left":  "Center-Left",
			"lean left":    "Center-Left",
			"moderate":     "Center",
			"neutral":      "Center",
			"centrist":     "Center",
			"centre":       "Center",
			"centre-right": "Center-Right",
			"center right": "Center-Right",
			"lean right":   "Center-Right",
			"conservative": "Right",
			"far right":    "Right",
			"right wing":   "Right",
			"right-wing":   "Right",
		},
		fallback: "Center",
	}

	sentimentTones = labelSet{
		canonical: []string{"Positive", "Negative", "Neutral", "Mixed"},
		synonyms: map[string]string{
			"optimistic":  "Positive",
			"upbeat":      "Positive",
			"favorable":   "Positive",
			"pessimistic": "Negative",
			"critical":    "Negative",
			"unfavorable": "Negative",
			"balanced":    "Neutral",
			"objective":   "Neutral",
			"ambivalent":  "Mixed",
		},
		fallback: "Neutral",
	}

	readingLevels = labelSet{
		canonical: []string{"Elementary", "Middle School", "High School", "College", "Graduate"},
		synonyms: map[string]string{
			"basic":         "Elementary",
			"simple":        "Elementary",
			"easy":          "Elementary",
			"intermediate":  "High School",
			"secondary":     "High School",
			"advanced":      "College",
			"university":    "College",
			"undergraduate": "College",
			"academic":      "Graduate",
			"expert":        "Graduate",
			"postgraduate":  "Graduate",
		},
		fallback: "High School",
	}

	emotionalTones = labelSet{
		canonical: []string{"Neutral", "Angry", "Fearful", "Hopeful", "Sad", "Excited"},
		synonyms: map[string]string{
			"outraged":     "Angry",
			"outrage":      "Angry",
			"furious":      "Angry",
			"anxious":      "Fearful",
			"alarming":     "Fearful",
			"worried":      "Fearful",
			"scared":       "Fearful",
			"optimistic":   "Hopeful",
			"uplifting":    "Hopeful",
			"inspiring":    "Hopeful",
			"melancholy":   "Sad",
			"somber":       "Sad",
			"tragic":       "Sad",
			"enthusiastic": "Excited",
			"thrilled":     "Excited",
		},
		fallback: "Neutral",
	}
)

// rawAnalysis is the loosely-typed shape the enrichment service actually
// returns; every field tolerates the wrong JSON type.
type rawAnalysis struct {
	ClickbaitScore   any      `json:"clickbaitScore"`
	BiasScore        any      `json:"biasScore"`
	SentimentScore   any      `json:"sentimentScore"`
	ReadabilityScore any      `json:"readabilityScore"`
	EngagementScore  any      `json:"engagementScore"`
	TargetGeneration string   `json:"targetGeneration"`
	PoliticalLeaning string   `json:"politicalLeaning"`
	SentimentTone    string   `json:"sentimentTone"`
	ReadingLevel     string   `json:"readingLevel"`
	EmotionalTone    string   `json:"emotionalTone"`
	Summary          string   `json:"summary"`
	Categories       []string `json:"categories"`
}

func (r rawAnalysis) toResult() *Result {
	return &Result{
		Metrics: model.Metrics{
			ClickbaitScore:   coerceScore(r.ClickbaitScore),
			BiasScore:        coerceScore(r.BiasScore),
			SentimentScore:   coerceScore(r.SentimentScore),
			ReadabilityScore: coerceScore(r.ReadabilityScore),
			EngagementScore:  coerceScore(r.EngagementScore),
			TargetGeneration: targetGenerations.normalize(r.TargetGeneration),
			PoliticalLeaning: politicalLeanings.normalize(r.PoliticalLeaning),
			SentimentTone:    sentimentTones.normalize(r.SentimentTone),
			ReadingLevel:     readingLevels.normalize(r.ReadingLevel),
			EmotionalTone:    emotionalTones.normalize(r.EmotionalTone),
		},
		Summary:    strings.TrimSpace(r.Summary),
		Categories: normalizeCategories(r.Categories),
	}
}

// coerceScore clamps any numeric-ish value into [0,100]. Non-numeric values
// default to the neutral midpoint rather than failing the whole response.
func coerceScore(raw any) int {
	switch v := raw.(type) {
	case float64:
		return clampScore(int(v + 0.5))
	case int:
		return clampScore(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return neutralScore
		}
		return clampScore(int(parsed + 0.5))
	default:
		return neutralScore
	}
}

func clampScore(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// normalizeCategories keeps at most maxCategories closed-set labels, falling
// back to ["other"] when the service returns nothing classifiable.
func normalizeCategories(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	categories := make([]string, 0, maxCategories)
	for _, entry := range raw {
		category := strings.TrimSpace(strings.ToLower(entry))
		if !model.IsCategory(category) {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
		if len(categories) == maxCategories {
			break
		}
	}

	if len(categories) == 0 {
		return []string{model.CategoryOther}
	}
	return categories
}
