package models

// Requests for the trading control endpoints.

type ManualTradeRequest struct {
	Symbol         string   `json:"symbol" validate:"required,symbol"`
	Side           string   `json:"side" validate:"required,oneof=BUY SELL buy sell"`
	Quantity       int64    `json:"quantity" validate:"gt=0"`
	SentimentScore *float64 `json:"sentiment_score" validate:"omitempty,gte=-1,lte=1"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
}

type ObservationsRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
	Source string `query:"source"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=500"`
}

type TradesRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,symbol"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}
