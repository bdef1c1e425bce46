package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sentimentRow struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	Symbol     string         `gorm:"size:16;not null;index:idx_sentiment_lookup,priority:1"`
	Source     string         `gorm:"size:32;not null;index:idx_sentiment_lookup,priority:2"`
	Score      float64        `gorm:"not null"`
	Confidence float64        `gorm:"not null"`
	Content    string         `gorm:"type:text"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	Timestamp  time.Time      `gorm:"not null;index:idx_sentiment_lookup,priority:3,sort:desc"`
	CreatedAt  time.Time
}

func (sentimentRow) TableName() string { return "sentiment_data" }

type positionRow struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	Symbol        string          `gorm:"size:16;not null;uniqueIndex"`
	Quantity      decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	AveragePrice  decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	CurrentPrice  decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	TotalValue    decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(20,6);not null;default:0"`
	LastUpdated   time.Time       `gorm:"not null"`
}

func (positionRow) TableName() string { return "portfolio_positions" }

type tradeRow struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	Symbol         string          `gorm:"size:16;not null;index"`
	Side           string          `gorm:"size:4;not null"`
	Quantity       decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Price          decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	SentimentScore *float64
	BrokerOrderID  string    `gorm:"size:64;not null;uniqueIndex"`
	ClientOrderID  string    `gorm:"size:64"`
	Status         string    `gorm:"size:32;not null"`
	ExecutedAt     time.Time `gorm:"not null;index"`
}

func (tradeRow) TableName() string { return "trades" }

// PostgresStore is the durable store for observations, the position mirror and the trade log.
type PostgresStore struct {
	db     *gorm.DB
	logger *applogger.Logger
}

func NewPostgresStore(db *gorm.DB, logger *applogger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Migrate creates or updates the three tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&sentimentRow{}, &positionRow{}, &tradeRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, instrument, source string, since time.Time, limit int) ([]models.SentimentObservation, error) {
	var rows []sentimentRow
	q := s.db.WithContext(ctx).
		Where("symbol = ? AND source = ?", instrument, source)
	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query sentiment %s/%s: %w", instrument, source, err)
	}

	out := make([]models.SentimentObservation, 0, len(rows))
	for _, r := range rows {
		obs := models.SentimentObservation{
			Instrument: r.Symbol,
			Source:     r.Source,
			Score:      r.Score,
			Confidence: r.Confidence,
			ObservedAt: r.Timestamp.UTC(),
			Content:    r.Content,
		}
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &obs.Metadata); err != nil {
				s.logger.Debug("sentiment metadata not decodable",
					applogger.Int64("id", int64(r.ID)), applogger.Error(err))
			}
		}
		out = append(out, obs)
	}
	return out, nil
}

func (s *PostgresStore) SaveObservation(ctx context.Context, obs *models.SentimentObservation) error {
	row := sentimentRow{
		Symbol:     obs.Instrument,
		Source:     obs.Source,
		Score:      obs.Score,
		Confidence: obs.Confidence,
		Content:    obs.Content,
		Timestamp:  obs.ObservedAt.UTC(),
	}
	if len(obs.Metadata) > 0 {
		b, err := json.Marshal(obs.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(b)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert sentiment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *models.Position) error {
	row := positionRow{
		Symbol:        p.Instrument,
		Quantity:      p.Quantity,
		AveragePrice:  p.AveragePrice,
		CurrentPrice:  p.CurrentPrice,
		TotalValue:    p.TotalValue,
		UnrealizedPnL: p.UnrealizedPnL,
		LastUpdated:   p.LastUpdated.UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity", "average_price", "current_price", "total_value", "unrealized_pnl", "last_updated",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.Instrument, err)
	}
	return nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]models.Position, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Order("symbol").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	out := make([]models.Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Position{
			Instrument:    r.Symbol,
			Quantity:      r.Quantity,
			AveragePrice:  r.AveragePrice,
			CurrentPrice:  r.CurrentPrice,
			TotalValue:    r.TotalValue,
			UnrealizedPnL: r.UnrealizedPnL,
			LastUpdated:   r.LastUpdated.UTC(),
		})
	}
	return out, nil
}

// InsertTrade appends a trade. A second insert with the same broker order id is a no-op
// and reports false.
func (s *PostgresStore) InsertTrade(ctx context.Context, t *models.Trade) (bool, error) {
	row := tradeRow{
		Symbol:         t.Instrument,
		Side:           string(t.Side),
		Quantity:       t.Quantity,
		Price:          t.Price,
		TotalAmount:    t.Notional,
		SentimentScore: t.SentimentScore,
		BrokerOrderID:  t.BrokerOrderID,
		ClientOrderID:  t.ClientOrderID,
		Status:         t.Status,
		ExecutedAt:     t.ExecutedAt.UTC(),
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "broker_order_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert trade %s: %w", t.BrokerOrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	t.ID = row.ID
	return true, nil
}

func (s *PostgresStore) ListTrades(ctx context.Context, instrument string, limit int) ([]models.Trade, error) {
	var rows []tradeRow
	q := s.db.WithContext(ctx).Order("executed_at DESC").Order("id DESC")
	if instrument != "" {
		q = q.Where("symbol = ?", instrument)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	out := make([]models.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Trade{
			ID:             r.ID,
			Instrument:     r.Symbol,
			Side:           models.Side(r.Side),
			Quantity:       r.Quantity,
			Price:          r.Price,
			Notional:       r.TotalAmount,
			SentimentScore: r.SentimentScore,
			BrokerOrderID:  r.BrokerOrderID,
			ClientOrderID:  r.ClientOrderID,
			Status:         r.Status,
			ExecutedAt:     r.ExecutedAt.UTC(),
		})
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
