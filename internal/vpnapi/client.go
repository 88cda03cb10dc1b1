package vpnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://vpn.mwshark.host/api/v1"

// Client is a thin wrapper around the MWShark reseller API. One call is one
// HTTP round trip; there is no retry or backoff here, callers treat any
// failure as terminal for the current attempt.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription is the provider's view of one issued grant. ExpiryDate is
// ISO-8601, sometimes with a UTC offset suffix.
type Subscription struct {
	UserID     int64  `json:"user_id"`
	UUID       string `json:"uuid"`
	ExpiryDate string `json:"expiry_date"`
	Link       string `json:"link"`
	Days       int    `json:"days"`
}

type Balance struct {
	Balance        float64 `json:"balance"`
	TotalTopups    float64 `json:"total_topups"`
	TotalSpent     float64 `json:"total_spent"`
	TotalPurchases int     `json:"total_purchases"`
}

type Tariff struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Days     int     `json:"days"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

type apiResponse struct {
	Success      bool            `json:"success"`
	Error        string          `json:"error"`
	Subscription *Subscription   `json:"subscription"`
	Revoke       *revokeResult   `json:"revoke"`
	Balance      *float64        `json:"balance"`
	TotalTopups  float64         `json:"total_topups"`
	TotalSpent   float64         `json:"total_spent"`
	Purchases    int             `json:"total_purchases"`
	Tariffs      []Tariff        `json:"tariffs"`
	History      json.RawMessage `json:"history"`
}

type revokeResult struct {
	DaysRevoked int `json:"days_revoked"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vpn api request: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("vpn api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("vpn api: %s", msg)
	}
	return &out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, userID int64, days int) (*Subscription, error) {
	out, err := c.do(ctx, http.MethodPost, "/subscription/create", map[string]any{
		"user_id": userID,
		"days":    days,
	})
	if err != nil {
		return nil, err
	}
	if out.Subscription == nil {
		return nil, fmt.Errorf("vpn api: empty subscription in response")
	}
	return out.Subscription, nil
}

func (c *Client) ExtendSubscription(ctx context.Context, uuid string, days int) (*Subscription, error) {
	out, err := c.do(ctx, http.MethodPost, "/subscription/extend", map[string]any{
		"uuid": uuid,
		"days": days,
	})
	if err != nil {
		return nil, err
	}
	if out.Subscription == nil {
		return nil, fmt.Errorf("vpn api: empty subscription in response")
	}
	return out.Subscription, nil
}

// RevokeSubscription returns the number of unused days credited back.
func (c *Client) RevokeSubscription(ctx context.Context, uuid string) (int, error) {
	out, err := c.do(ctx, http.MethodPost, "/subscription/revoke", map[string]any{
		"uuid": uuid,
	})
	if err != nil {
		return 0, err
	}
	if out.Revoke == nil {
		return 0, nil
	}
	return out.Revoke.DaysRevoked, nil
}

func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	out, err := c.do(ctx, http.MethodGet, "/balance", nil)
	if err != nil {
		return nil, err
	}
	b := &Balance{
		TotalTopups:    out.TotalTopups,
		TotalSpent:     out.TotalSpent,
		TotalPurchases: out.Purchases,
	}
	if out.Balance != nil {
		b.Balance = *out.Balance
	}
	return b, nil
}

func (c *Client) GetTariffs(ctx context.Context) ([]Tariff, error) {
	out, err := c.do(ctx, http.MethodGet, "/tariffs", nil)
	if err != nil {
		return nil, err
	}
	return out.Tariffs, nil
}

func (c *Client) GetHistory(ctx context.Context) (json.RawMessage, error) {
	out, err := c.do(ctx, http.MethodGet, "/history", nil)
	if err != nil {
		return nil, err
	}
	return out.History, nil
}
