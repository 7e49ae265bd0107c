package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when a write is rejected before touching the
// database (e.g. blank prompt content).
var ErrValidation = errors.New("validation failed")

// ErrForeignKey is returned when a response references a prompt that does
// not exist. No row is inserted.
var ErrForeignKey = errors.New("foreign key violation")

// PromptRecord is an analyzed piece of text. Content and CreatedAt are
// immutable once written; the analysis fields are nil until UpdateAnalysis
// runs and frozen in practice afterwards.
type PromptRecord struct {
	ID             string
	Content        string
	Context        string
	ConversationID string
	MetadataJSON   string // free-form attributes stored as JSON text
	CreatedAt      time.Time
	QualityScore   *float64
	Complexity     *string
	Technique      *string
}

// ResponseRecord is a reply linked to a prompt.
type ResponseRecord struct {
	ID         string
	PromptID   string
	Content    string
	UserRating *int // 1–5 when set
	CreatedAt  time.Time
}

// Insight is a derived observation over a window of prompt history.
// Acknowledged is the only field mutable after creation.
type Insight struct {
	ID            string
	CreatedAt     time.Time
	Type          string
	Severity      string // "info", "suggestion", or "warning"
	Title         string
	Description   string
	EvidenceJSON  string // structured numeric support, JSON object as text
	PromptIDsJSON string // evidence sample ids (<=10), JSON array as text
	Acknowledged  bool
}

// DayMetric is one calendar-day aggregate over scored prompts.
type DayMetric struct {
	Date           string  `json:"date"`
	AverageQuality float64 `json:"average_quality"`
	Count          int     `json:"count"`
}

// ActivityItem summarizes one recent prompt for the stats view.
type ActivityItem struct {
	ID           string   `json:"id"`
	CreatedAt    string   `json:"created_at"`
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// Stats is the basic-stats aggregate consumed by the dashboard.
type Stats struct {
	TotalCount             int            `json:"total_count"`
	AverageQuality         float64        `json:"average_quality"`
	TodayCount             int            `json:"today_count"`
	ComplexityDistribution map[string]int `json:"complexity_distribution"`
	RecentActivity         []ActivityItem `json:"recent_activity"`
}
