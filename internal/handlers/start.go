package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mwshark/shop-bot/internal/messages"
	"github.com/mwshark/shop-bot/types"
)

// HandleStart registers the user, records a referral deep link on first
// contact and walks new users through the terms gate.
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	username := update.Message.From.Username

	referrerID := parseReferralArg(update.Message.Text)
	if referrerID == userID {
		referrerID = 0
	}

	user := h.ensureUser(ctx, b, userID, username, referrerID)
	if user == nil {
		return
	}

	if !user.AgreedToTerms {
		termsURL, _ := h.store.GetSetting(types.SettingTermsURL)
		privacyURL, _ := h.store.GetSetting(types.SettingPrivacyURL)
		kb := models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "✅ Согласен", CallbackData: "agree_terms"}},
		}}
		h.send(ctx, b, userID, messages.StartWelcome())
		h.sendWithKeyboard(ctx, b, userID, messages.TermsPrompt(termsURL, privacyURL), kb)
		return
	}

	h.sendMainMenu(ctx, b, userID)
}

func (h *Handlers) handleAgreeTerms(ctx context.Context, b *bot.Bot, userID int64, callbackID string) {
	if err := h.store.SetTermsAgreed(userID); err != nil {
		h.answerCallback(ctx, b, callbackID, messages.ErrorDefault())
		return
	}
	h.answerCallback(ctx, b, callbackID, "")

	if force, _ := h.store.GetSetting(types.SettingForceSubscription); force == "true" {
		if channel, _ := h.store.GetSetting(types.SettingChannelURL); channel != "" {
			h.send(ctx, b, userID, messages.ForceSubscription(channel))
		}
	}
	h.sendMainMenu(ctx, b, userID)
}

// parseReferralArg reads "/start ref_<id>" deep links.
func parseReferralArg(text string) int64 {
	parts := strings.Fields(text)
	if len(parts) < 2 || !strings.HasPrefix(parts[1], "ref_") {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "ref_"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
