package repository

import (
	"context"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"
)

// FallbackReader serves observations from the primary (Redis) and falls back to the
// secondary (Postgres) when the primary errors or returns nothing.
type FallbackReader struct {
	primary   domrepo.ObservationReader
	secondary domrepo.ObservationReader
	logger    *applogger.Logger
}

func NewFallbackReader(primary, secondary domrepo.ObservationReader, logger *applogger.Logger) *FallbackReader {
	return &FallbackReader{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackReader) Recent(ctx context.Context, instrument, source string, since time.Time, limit int) ([]models.SentimentObservation, error) {
	obs, err := f.primary.Recent(ctx, instrument, source, since, limit)
	if err == nil && len(obs) > 0 {
		return obs, nil
	}
	if f.secondary == nil {
		return obs, err
	}
	if err != nil {
		f.logger.Warn("primary sentiment store failed, using fallback",
			applogger.String("symbol", instrument),
			applogger.String("source", source),
			applogger.Error(err))
	}
	return f.secondary.Recent(ctx, instrument, source, since, limit)
}
