package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwshark/shop-bot/types"
)

func TestParseReferralArg(t *testing.T) {
	assert.Equal(t, int64(777), parseReferralArg("/start ref_777"))
	assert.Zero(t, parseReferralArg("/start"))
	assert.Zero(t, parseReferralArg("/start promo2024"))
	assert.Zero(t, parseReferralArg("/start ref_abc"))
	assert.Zero(t, parseReferralArg("/start ref_-5"))
}

func TestLooksLikeEmail(t *testing.T) {
	assert.True(t, looksLikeEmail("user@example.com"))
	assert.True(t, looksLikeEmail("a.b+c@mail.example.org"))
	assert.False(t, looksLikeEmail("user"))
	assert.False(t, looksLikeEmail("user@"))
	assert.False(t, looksLikeEmail("@example.com"))
	assert.False(t, looksLikeEmail("user@localhost"))
	assert.False(t, looksLikeEmail("two words@example.com"))
}

func TestMethodLabel(t *testing.T) {
	assert.Equal(t, types.MethodYooKassa, methodLabel("yookassa"))
	assert.Equal(t, types.MethodTON, methodLabel("ton"))
	assert.Empty(t, methodLabel("paypal"))
}
