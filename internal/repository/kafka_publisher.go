package repository

import (
	"context"

	"SentiTrade/internal/domain/models"
	pkgkafka "SentiTrade/pkg/kafka"
	"SentiTrade/pkg/util"
)

// KafkaTradePublisher emits executed trades, keyed by symbol.
type KafkaTradePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTradePublisher(producer *pkgkafka.Producer, topic string) *KafkaTradePublisher {
	return &KafkaTradePublisher{producer: producer, topic: topic}
}

func (p *KafkaTradePublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Instrument), TradeEvent(t))
}

func (p *KafkaTradePublisher) Close() error {
	return p.producer.Close()
}

// TradeEvent is the wire payload for an executed trade.
func TradeEvent(t *models.Trade) map[string]interface{} {
	ev := map[string]interface{}{
		"type":            "trade_executed",
		"id":              t.ID,
		"symbol":          t.Instrument,
		"side":            string(t.Side),
		"quantity":        t.Quantity.String(),
		"price":           t.Price.String(),
		"total_amount":    t.Notional.String(),
		"broker_order_id": t.BrokerOrderID,
		"status":          t.Status,
		"executed_at":     util.FormatISO(t.ExecutedAt),
	}
	if t.SentimentScore != nil {
		ev["sentiment_score"] = *t.SentimentScore
	}
	return ev
}
