package models

import (
	"math"
	"time"
)

// SentimentObservation is one scored opinion about an instrument from a single source.
type SentimentObservation struct {
	Instrument string                 `json:"symbol"`
	Source     string                 `json:"source"`
	Score      float64                `json:"sentiment_score"`
	Confidence float64                `json:"confidence_score"`
	ObservedAt time.Time              `json:"timestamp"`
	Content    string                 `json:"content,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Valid reports whether score and confidence are finite and inside their ranges.
func (o SentimentObservation) Valid() bool {
	if math.IsNaN(o.Score) || math.IsInf(o.Score, 0) || o.Score < -1 || o.Score > 1 {
		return false
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1 {
		return false
	}
	return true
}

// AggregatedSentiment is the weighted score for one instrument in one cycle.
// A nil *AggregatedSentiment means there was no signal.
type AggregatedSentiment struct {
	Instrument              string             `json:"symbol"`
	WeightedScore           float64            `json:"sentiment_score"`
	ContributingSourceCount int                `json:"contributing_sources"`
	SourceScores            map[string]float64 `json:"source_scores,omitempty"`
	ComputedAt              time.Time          `json:"computed_at"`
}
