package payments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const heleketTestKey = "test-heleket-secret"

// Canonical form of the callback below: sign removed, keys sorted.
const heleketCanonicalBody = `{"amount":"950.00","currency":"RUB","description":"{\"user_id\":555,\"days\":30,\"price\":\"950.00\",\"action\":\"new\",\"key_id\":0,\"plan_id\":3,\"customer_email\":null,\"payment_method\":\"Heleket\"}","order_id":"a1d9c76b-61a5-4efb-9b8e-2c1a2ac2d0f1","status":"paid","uuid":"bb1f1c6a-0f5b-4c3e-9f59-2f41f0be4e2b"}`

const heleketCallbackBody = `{"uuid":"bb1f1c6a-0f5b-4c3e-9f59-2f41f0be4e2b","order_id":"a1d9c76b-61a5-4efb-9b8e-2c1a2ac2d0f1","amount":"950.00","currency":"RUB","status":"paid","description":"{\"user_id\":555,\"days\":30,\"price\":\"950.00\",\"action\":\"new\",\"key_id\":0,\"plan_id\":3,\"customer_email\":null,\"payment_method\":\"Heleket\"}","sign":"7d19428633f8a54ed19ae6432b30a543"}`

func TestHeleketSign(t *testing.T) {
	got := heleketSign([]byte(heleketCanonicalBody), heleketTestKey)
	assert.Equal(t, "7d19428633f8a54ed19ae6432b30a543", got)
}

func TestVerifyHeleketCallback(t *testing.T) {
	assert.True(t, VerifyHeleketCallback([]byte(heleketCallbackBody), heleketTestKey))
}

func TestVerifyHeleketCallbackRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{
			name: "wrong key",
			body: heleketCallbackBody,
			key:  "another-secret",
		},
		{
			name: "tampered amount",
			body: strings.Replace(heleketCallbackBody, `"950.00"`, `"1.00"`, 1),
			key:  heleketTestKey,
		},
		{
			name: "tampered metadata",
			body: strings.Replace(heleketCallbackBody, `\"user_id\":555`, `\"user_id\":556`, 1),
			key:  heleketTestKey,
		},
		{
			name: "missing sign",
			body: heleketCanonicalBody,
			key:  heleketTestKey,
		},
		{
			name: "not json",
			body: "paid",
			key:  heleketTestKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyHeleketCallback([]byte(tt.body), tt.key))
		})
	}
}

// Verification must not depend on the field order the processor happens
// to serialize with.
func TestVerifyHeleketCallbackKeyOrderIndependent(t *testing.T) {
	reordered := `{"sign":"7d19428633f8a54ed19ae6432b30a543","status":"paid","uuid":"bb1f1c6a-0f5b-4c3e-9f59-2f41f0be4e2b","amount":"950.00","order_id":"a1d9c76b-61a5-4efb-9b8e-2c1a2ac2d0f1","currency":"RUB","description":"{\"user_id\":555,\"days\":30,\"price\":\"950.00\",\"action\":\"new\",\"key_id\":0,\"plan_id\":3,\"customer_email\":null,\"payment_method\":\"Heleket\"}"}`
	assert.True(t, VerifyHeleketCallback([]byte(reordered), heleketTestKey))
}
