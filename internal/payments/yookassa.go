package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/types"
)

type yookassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yookassaReceiptItem struct {
	Description string         `json:"description"`
	Quantity    string         `json:"quantity"`
	Amount      yookassaAmount `json:"amount"`
	VATCode     int            `json:"vat_code"`
}

type yookassaPaymentRequest struct {
	Amount       yookassaAmount `json:"amount"`
	Capture      bool           `json:"capture"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Receipt     *struct {
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Items []yookassaReceiptItem `json:"items"`
	} `json:"receipt,omitempty"`
}

type yookassaPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// yookassaMetadata is the structured order snapshot the processor echoes
// back inside the payment.succeeded notification.
func yookassaMetadata(order types.Order) map[string]any {
	m := map[string]any{
		"user_id":        order.UserID,
		"days":           order.Days,
		"price":          order.Price.StringFixed(2),
		"action":         string(order.Action),
		"plan_id":        order.PlanID,
		"payment_method": order.PaymentMethod,
	}
	if order.KeyID != 0 {
		m["key_id"] = order.KeyID
	}
	if order.CustomerEmail != "" {
		m["customer_email"] = order.CustomerEmail
	}
	return m
}

// CreateYooKassaPayment registers a card payment and returns the
// confirmation URL the buyer is sent to.
func (f *Factory) CreateYooKassaPayment(ctx context.Context, order types.Order, description string) (string, error) {
	creds, err := f.requireSettings(types.SettingYooKassaShopID, types.SettingYooKassaSecretKey)
	if err != nil {
		return "", err
	}
	botUsername, _ := f.setting(types.SettingBotUsername)

	reqBody := yookassaPaymentRequest{
		Amount:      yookassaAmount{Value: order.Price.StringFixed(2), Currency: "RUB"},
		Capture:     true,
		Description: description,
		Metadata:    yookassaMetadata(order),
	}
	reqBody.Confirmation.Type = "redirect"
	reqBody.Confirmation.ReturnURL = "https://t.me/" + botUsername

	email := order.CustomerEmail
	if !strings.Contains(email, "@") {
		email, _ = f.setting(types.SettingReceiptEmail)
	}
	if strings.Contains(email, "@") {
		receipt := &struct {
			Customer struct {
				Email string `json:"email"`
			} `json:"customer"`
			Items []yookassaReceiptItem `json:"items"`
		}{}
		receipt.Customer.Email = email
		receipt.Items = []yookassaReceiptItem{{
			Description: description,
			Quantity:    "1",
			Amount:      reqBody.Amount,
			VATCode:     1,
		}}
		reqBody.Receipt = receipt
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.yookassaURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(creds[types.SettingYooKassaShopID], creds[types.SettingYooKassaSecretKey])
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", fmt.Errorf("yookassa returned %d: %s", resp.StatusCode, apiErr.Description)
	}

	var result yookassaPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("yookassa response: %w", err)
	}
	if result.Confirmation.ConfirmationURL == "" {
		return "", fmt.Errorf("yookassa payment %s has no confirmation url", result.ID)
	}

	log.Debug().Str("payment_id", result.ID).Int64("user_id", order.UserID).Msg("yookassa payment created")
	return result.Confirmation.ConfirmationURL, nil
}
