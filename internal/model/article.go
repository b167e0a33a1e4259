package model

import (
	"strings"
	"time"
)

// Article is the central entity of the pipeline. A record is created in
// pending form (Analyzed=false, zeroed metrics), persisted once, then mutated
// exactly once to its analyzed form and persisted again under the same ID.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	URL         string     `json:"url,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Source      string     `json:"source,omitempty"`
	Language    string     `json:"language,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	Metrics    Metrics  `json:"metrics"`
	Categories []string `json:"categories,omitempty"`
	Analyzed   bool     `json:"analyzed"`
	AISummary  string   `json:"aiSummary,omitempty"`

	// StoredAt is stamped on every write and drives TTL eviction. It is not
	// the creation time.
	StoredAt time.Time `json:"storedAt"`
}

// Metrics holds the AI-derived editorial scores and labels. Numeric scores
// are always within [0,100]; label fields hold canonical enumeration values.
type Metrics struct {
	ClickbaitScore   int `json:"clickbaitScore"`
	BiasScore        int `json:"biasScore"`
	SentimentScore   int `json:"sentimentScore"`
	ReadabilityScore int `json:"readabilityScore"`
	EngagementScore  int `json:"engagementScore"`

	TargetGeneration string `json:"targetGeneration,omitempty"`
	PoliticalLeaning string `json:"politicalLeaning,omitempty"`
	SentimentTone    string `json:"sentimentTone,omitempty"`
	ReadingLevel     string `json:"readingLevel,omitempty"`
	EmotionalTone    string `json:"emotionalTone,omitempty"`
}

// CategoryOther is the catch-all category assigned when enrichment yields
// nothing classifiable.
const CategoryOther = "other"

// Categories is the closed set of content categories.
var Categories = []string{
	"sport",
	"economy",
	"politics",
	"technology",
	"health",
	"science",
	"entertainment",
	"world",
	"culture",
	CategoryOther,
}

// IsCategory reports whether raw matches a closed-set category,
// case-insensitively.
func IsCategory(raw string) bool {
	needle := strings.TrimSpace(strings.ToLower(raw))
	for _, category := range Categories {
		if category == needle {
			return true
		}
	}
	return false
}
