package hermes

import (
	"time"

	"github.com/google/uuid"
)

type AnswerEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id"`
	Rating     int       `json:"rating,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type EvidenceEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id"`
	ImageCount int       `json:"image_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScoreEvent is a compact snapshot of a recomputation.
type ScoreEvent struct {
	EventID        uuid.UUID           `json:"event_id"`
	UserID         string              `json:"user_id"`
	Overall        float64             `json:"overall"`
	MaturityLevel  string              `json:"maturity_level"`
	DomainScores   map[string]*float64 `json:"domain_scores"`
	Answered       int                 `json:"answered"`
	Total          int                 `json:"total"`
	ComplianceRate float64             `json:"compliance_rate"`
	Timestamp      time.Time           `json:"timestamp"`
}

type FrameworkEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	FrameworkID string    `json:"framework_id"`
	Enabled     bool      `json:"enabled"`
	Timestamp   time.Time `json:"timestamp"`
}
