package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// AlpacaOption configures AlpacaClient.
type AlpacaOption func(*AlpacaConfig)

type AlpacaConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

func WithBaseURL(u string) AlpacaOption {
	return func(c *AlpacaConfig) { c.BaseURL = strings.TrimRight(u, "/") }
}

func WithCredentials(key, secret string) AlpacaOption {
	return func(c *AlpacaConfig) {
		c.APIKey = key
		c.APISecret = secret
	}
}

func WithTimeout(d time.Duration) AlpacaOption {
	return func(c *AlpacaConfig) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// AlpacaClient talks to the Alpaca trading REST API (v2).
type AlpacaClient struct {
	client *resty.Client
}

func NewAlpacaClient(opts ...AlpacaOption) (*AlpacaClient, error) {
	cfg := &AlpacaConfig{
		BaseURL: "https://paper-api.alpaca.markets",
		Timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("alpaca credentials are required")
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("APCA-API-KEY-ID", cfg.APIKey)
	client.SetHeader("APCA-API-SECRET-KEY", cfg.APISecret)
	client.SetHeader("Accept", "application/json")
	// order submission must never be retried blindly
	client.SetRetryCount(0)

	return &AlpacaClient{client: client}, nil
}

type alpacaOrder struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	Side           string          `json:"side"`
	Status         string          `json:"status"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

type alpacaPosition struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPL  decimal.Decimal `json:"unrealized_pl"`
}

type alpacaError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type orderBody struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func (a *AlpacaClient) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	var out alpacaOrder
	var apiErr alpacaError
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(orderBody{
			Symbol:        req.Instrument,
			Qty:           req.Quantity.String(),
			Side:          strings.ToLower(string(req.Side)),
			Type:          defaultString(req.Type, "market"),
			TimeInForce:   defaultString(req.TimeInForce, "day"),
			ClientOrderID: req.ClientOrderID,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v2/orders")
	if err := classify("submit order", resp, err, &apiErr); err != nil {
		return nil, err
	}
	return out.toModel(), nil
}

func (a *AlpacaClient) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var out alpacaOrder
	var apiErr alpacaError
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v2/orders/{id}")
	if err := classify("get order", resp, err, &apiErr); err != nil {
		return nil, err
	}
	return out.toModel(), nil
}

func (a *AlpacaClient) ListPositions(ctx context.Context) ([]models.Position, error) {
	var out []alpacaPosition
	var apiErr alpacaError
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v2/positions")
	if err := classify("list positions", resp, err, &apiErr); err != nil {
		return nil, err
	}
	positions := make([]models.Position, 0, len(out))
	for _, p := range out {
		positions = append(positions, models.Position{
			Instrument:    p.Symbol,
			Quantity:      p.Qty,
			AveragePrice:  p.AvgEntryPrice,
			CurrentPrice:  p.CurrentPrice,
			TotalValue:    p.Qty.Mul(p.CurrentPrice),
			UnrealizedPnL: p.UnrealizedPL,
		})
	}
	return positions, nil
}

// Ping checks the account endpoint.
func (a *AlpacaClient) Ping(ctx context.Context) error {
	var apiErr alpacaError
	resp, err := a.client.R().SetContext(ctx).SetError(&apiErr).Get("/v2/account")
	return classify("account", resp, err, &apiErr)
}

// classify maps transport failures and 5xx to ErrBrokerUnavailable, other 4xx to ErrOrderRejected.
func classify(op string, resp *resty.Response, err error, apiErr *alpacaError) error {
	if err != nil {
		return fmt.Errorf("alpaca %s: %w", op, errors.Join(models.ErrBrokerUnavailable, err))
	}
	if !resp.IsError() {
		return nil
	}
	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return fmt.Errorf("alpaca %s: %w: %s", op, models.ErrNotFound, msg)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("alpaca %s: %w: status %d: %s", op, models.ErrBrokerUnavailable, code, msg)
	default:
		return fmt.Errorf("alpaca %s: %w: status %d: %s", op, models.ErrOrderRejected, code, msg)
	}
}

func (o alpacaOrder) toModel() *models.Order {
	return &models.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Instrument:     o.Symbol,
		Side:           models.Side(strings.ToUpper(o.Side)),
		Quantity:       o.Qty,
		FilledQuantity: o.FilledQty,
		FilledAvgPrice: o.FilledAvgPrice,
		Status:         o.Status,
		SubmittedAt:    o.SubmittedAt,
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
