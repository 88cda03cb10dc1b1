package payments

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/types"
)

type heleketInvoiceResponse struct {
	State  int `json:"state"`
	Result struct {
		UUID string `json:"uuid"`
		URL  string `json:"url"`
	} `json:"result"`
	Message string `json:"message"`
}

// heleketSign computes the request/callback signature: MD5 over the
// base64 of the compact JSON body concatenated with the API key.
func heleketSign(data []byte, apiKey string) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	sum := md5.Sum([]byte(encoded + apiKey))
	return hex.EncodeToString(sum[:])
}

// CreateHeleketInvoice creates a crypto invoice. The full order metadata
// rides in the description field and comes back verbatim in the callback.
func (f *Factory) CreateHeleketInvoice(ctx context.Context, order types.Order) (string, error) {
	creds, err := f.requireSettings(types.SettingHeleketMerchantID, types.SettingHeleketAPIKey)
	if err != nil {
		return "", err
	}
	merchantID := creds[types.SettingHeleketMerchantID]
	apiKey := creds[types.SettingHeleketAPIKey]

	meta, err := json.Marshal(order)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(map[string]any{
		"amount":      order.Price.StringFixed(2),
		"currency":    "RUB",
		"order_id":    uuid.NewString(),
		"description": string(meta),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.heleketURL+"/v1/payment", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", merchantID)
	req.Header.Set("sign", heleketSign(body, apiKey))

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("heleket request: %w", err)
	}
	defer resp.Body.Close()

	var result heleketInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("heleket response: %w", err)
	}
	if result.State != 0 || result.Result.URL == "" {
		return "", fmt.Errorf("heleket error: %s", result.Message)
	}

	log.Debug().Str("invoice_uuid", result.Result.UUID).Int64("user_id", order.UserID).Msg("heleket invoice created")
	return result.Result.URL, nil
}

// VerifyHeleketCallback checks the sign field of a callback body. The
// signature covers the body with sign removed, keys sorted, values kept
// byte for byte as received.
func VerifyHeleketCallback(body []byte, apiKey string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	signRaw, ok := fields["sign"]
	if !ok {
		return false
	}
	var got string
	if err := json.Unmarshal(signRaw, &got); err != nil {
		return false
	}
	delete(fields, "sign")

	canonical, err := canonicalJSON(fields)
	if err != nil {
		return false
	}
	want := heleketSign(canonical, apiKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// canonicalJSON serializes the map with sorted keys and compacted values,
// preserving the original value bytes so re-serialization cannot change
// number formatting.
func canonicalJSON(fields map[string]json.RawMessage) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if err := json.Compact(&buf, fields[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
