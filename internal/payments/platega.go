package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/types"
)

type plategaTransactionResponse struct {
	TransactionID string `json:"transactionId"`
	Redirect      string `json:"redirect"`
}

// CreatePlategaTransaction starts an SBP transfer. Platega echoes no
// metadata in its callback, so the order is parked locally under the
// transaction id and consumed when the callback arrives.
func (f *Factory) CreatePlategaTransaction(ctx context.Context, order types.Order, description string) (string, error) {
	creds, err := f.requireSettings(types.SettingPlategaMerchantID, types.SettingPlategaSecretKey)
	if err != nil {
		return "", err
	}
	merchantID := creds[types.SettingPlategaMerchantID]
	secret := creds[types.SettingPlategaSecretKey]

	methodStr, _ := f.setting(types.SettingPlategaMethod)
	method, err := strconv.Atoi(methodStr)
	if err != nil || method <= 0 {
		method = 2
	}
	botUsername, _ := f.setting(types.SettingBotUsername)

	price, _ := order.Price.Float64()
	body, err := json.Marshal(map[string]any{
		"paymentMethod": method,
		"id":            uuid.NewString(),
		"paymentDetails": map[string]any{
			"amount":   price,
			"currency": "RUB",
		},
		"description": description,
		"return":      "https://t.me/" + botUsername,
		"failedUrl":   "https://t.me/" + botUsername,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.plategaURL+"/transaction/process", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MerchantId", merchantID)
	req.Header.Set("X-Secret", secret)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("platega request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("platega returned %d", resp.StatusCode)
	}

	var result plategaTransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("platega response: %w", err)
	}
	if result.TransactionID == "" || result.Redirect == "" {
		return "", fmt.Errorf("platega response missing transaction id or redirect")
	}

	if err := f.store.CreatePendingCardTransaction(result.TransactionID, order); err != nil {
		return "", fmt.Errorf("record pending transaction: %w", err)
	}

	log.Debug().Str("transaction_id", result.TransactionID).Int64("user_id", order.UserID).Msg("platega transaction created")
	return result.Redirect, nil
}
