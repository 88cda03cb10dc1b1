package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/types"
)

type cryptobotInvoiceResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		InvoiceID int64  `json:"invoice_id"`
		BotPayURL string `json:"bot_invoice_url"`
	} `json:"result"`
	Error struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

// CreateCryptoBotInvoice creates a fiat-denominated invoice and remembers
// it locally so the paid notification can be consumed exactly once.
func (f *Factory) CreateCryptoBotInvoice(ctx context.Context, order types.Order, description string) (string, error) {
	creds, err := f.requireSettings(types.SettingCryptoBotToken)
	if err != nil {
		return "", err
	}
	token := creds[types.SettingCryptoBotToken]

	body, err := json.Marshal(map[string]any{
		"currency_type": "fiat",
		"fiat":          "RUB",
		"amount":        order.Price.StringFixed(2),
		"description":   description,
		"payload":       EncodePayload(order),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cryptobotURL+"/createInvoice", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cryptobot request: %w", err)
	}
	defer resp.Body.Close()

	var result cryptobotInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("cryptobot response: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("cryptobot error %d: %s", result.Error.Code, result.Error.Name)
	}

	invoiceID := strconv.FormatInt(result.Result.InvoiceID, 10)
	if err := f.store.CreatePendingInvoice(invoiceID, order); err != nil {
		return "", fmt.Errorf("record pending invoice: %w", err)
	}

	log.Debug().Str("invoice_id", invoiceID).Int64("user_id", order.UserID).Msg("cryptobot invoice created")
	return result.Result.BotPayURL, nil
}

// VerifyCryptoBotSignature checks the crypto-pay-api-signature header: an
// HMAC-SHA256 of the raw request body keyed by SHA-256 of the API token.
func VerifyCryptoBotSignature(body []byte, token, signature string) bool {
	if token == "" || signature == "" {
		return false
	}
	key := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, key[:])
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}
