package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	obs   []models.SentimentObservation
	err   error
	calls int
}

func (s *stubReader) Recent(context.Context, string, string, time.Time, int) ([]models.SentimentObservation, error) {
	s.calls++
	return s.obs, s.err
}

func TestFallbackReader(t *testing.T) {
	hit := []models.SentimentObservation{{Instrument: "AAPL", Source: "news", Score: 0.5}}
	backup := []models.SentimentObservation{{Instrument: "AAPL", Source: "news", Score: -0.2}}

	tests := []struct {
		name          string
		primary       *stubReader
		want          []models.SentimentObservation
		wantSecondary int
	}{
		{"primary hit", &stubReader{obs: hit}, hit, 0},
		{"primary empty", &stubReader{}, backup, 1},
		{"primary error", &stubReader{err: errors.New("redis down")}, backup, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secondary := &stubReader{obs: backup}
			r := NewFallbackReader(tt.primary, secondary, applogger.Nop())
			got, err := r.Recent(context.Background(), "AAPL", "news", time.Time{}, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSecondary, secondary.calls)
		})
	}
}

func TestFallbackReaderWithoutSecondary(t *testing.T) {
	r := NewFallbackReader(&stubReader{err: errors.New("down")}, nil, applogger.Nop())
	_, err := r.Recent(context.Background(), "AAPL", "news", time.Time{}, 10)
	assert.Error(t, err)
}
