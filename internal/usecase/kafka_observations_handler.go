package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	pkgkafka "SentiTrade/pkg/kafka"
	"SentiTrade/pkg/util"
)

// KafkaObservationsHandler consumes scored observations and writes them to every sink.
type KafkaObservationsHandler struct {
	topic   string
	sinks   []domrepo.ObservationWriter
	metrics domrepo.Metrics
}

func NewKafkaObservationsHandler(topic string, metrics domrepo.Metrics, sinks ...domrepo.ObservationWriter) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{topic: topic, sinks: sinks, metrics: metrics}
}

func (h *KafkaObservationsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, source, sentiment_score, confidence_score, timestamp, content, metadata}
func (h *KafkaObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol     string                 `json:"symbol"`
		Source     string                 `json:"source"`
		Score      *float64               `json:"sentiment_score"`
		Confidence float64                `json:"confidence_score"`
		Timestamp  json.RawMessage        `json:"timestamp"`
		Content    string                 `json:"content"`
		Metadata   map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Symbol == "" || m.Source == "" || m.Score == nil {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("observation missing symbol, source or score")
	}

	obs := &models.SentimentObservation{
		Instrument: strings.ToUpper(m.Symbol),
		Source:     strings.ToLower(m.Source),
		Score:      *m.Score,
		Confidence: m.Confidence,
		ObservedAt: parseEventTime(m.Timestamp),
		Content:    m.Content,
		Metadata:   m.Metadata,
	}
	if !obs.Valid() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("observation %s/%s out of range: score=%v confidence=%v", obs.Instrument, obs.Source, obs.Score, obs.Confidence)
	}

	start := time.Now()
	var errs []error
	for _, s := range h.sinks {
		if err := s.SaveObservation(ctx, obs); err != nil {
			errs = append(errs, err)
		}
	}
	h.metrics.RecordLatency("observation_store_seconds", time.Since(start).Seconds())
	if len(errs) > 0 {
		h.metrics.RecordError("consumer_store")
		return errors.Join(errs...)
	}
	return nil
}

// parseEventTime accepts an ISO string or unix seconds/millis, defaulting to now.
func parseEventTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Now().UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Now().UTC()
		}
		ts := int64(n)
		if ts > 1e11 { // ms
			ts = ts / 1000
		}
		return time.Unix(ts, 0).UTC()
	}
	return util.ParseTimeDefault(s, time.Now()).UTC()
}

var _ pkgkafka.MessageHandler = (*KafkaObservationsHandler)(nil)
