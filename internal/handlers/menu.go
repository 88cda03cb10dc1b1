package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mwshark/shop-bot/internal/messages"
	"github.com/mwshark/shop-bot/types"
)

func (h *Handlers) mainMenuKeyboard() models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{
		{{Text: "💳 Купить подписку", CallbackData: "menu_buy"}},
		{{Text: "🔑 Мои ключи", CallbackData: "menu_keys"}},
		{{Text: "👤 Профиль", CallbackData: "menu_profile"}, {Text: "👥 Рефералы", CallbackData: "menu_referral"}},
		{{Text: "🎁 Пробный период", CallbackData: "menu_trial"}},
		{{Text: "ℹ️ О сервисе", CallbackData: "menu_about"}, {Text: "🆘 Поддержка", CallbackData: "menu_support"}},
	}
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *Handlers) sendMainMenu(ctx context.Context, b *bot.Bot, chatID int64) {
	h.sendWithKeyboard(ctx, b, chatID, messages.MainMenu(), h.mainMenuKeyboard())
}

// HandleCallback routes every inline-keyboard press.
func (h *Handlers) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	userID := update.CallbackQuery.From.ID
	username := update.CallbackQuery.From.Username
	callbackID := update.CallbackQuery.ID
	data := strings.TrimSpace(update.CallbackQuery.Data)

	user := h.ensureUser(ctx, b, userID, username, 0)
	if user == nil {
		h.answerCallback(ctx, b, callbackID, "")
		return
	}

	switch {
	case data == "agree_terms":
		h.handleAgreeTerms(ctx, b, userID, callbackID)
	case data == "menu_main":
		h.answerCallback(ctx, b, callbackID, "")
		h.sendMainMenu(ctx, b, userID)
	case data == "menu_profile":
		h.answerCallback(ctx, b, callbackID, "")
		h.showProfile(ctx, b, user)
	case data == "menu_keys":
		h.answerCallback(ctx, b, callbackID, "")
		h.showKeys(ctx, b, userID)
	case data == "menu_buy":
		h.answerCallback(ctx, b, callbackID, "")
		h.showPlans(ctx, b, userID, types.ActionNew, 0)
	case data == "menu_referral":
		h.answerCallback(ctx, b, callbackID, "")
		h.showReferralInfo(ctx, b, user)
	case data == "menu_trial":
		h.handleTrial(ctx, b, user, callbackID)
	case data == "menu_about":
		h.answerCallback(ctx, b, callbackID, "")
		about, _ := h.store.GetSetting(types.SettingAboutText)
		h.send(ctx, b, userID, messages.About(about))
	case data == "menu_support":
		h.answerCallback(ctx, b, callbackID, "")
		supportUser, _ := h.store.GetSetting(types.SettingSupportUser)
		supportText, _ := h.store.GetSetting(types.SettingSupportText)
		h.send(ctx, b, userID, messages.Support(supportUser, supportText))
	case strings.HasPrefix(data, "key_"):
		h.answerCallback(ctx, b, callbackID, "")
		h.showKeyDetails(ctx, b, userID, data)
	case strings.HasPrefix(data, "extend_"):
		h.answerCallback(ctx, b, callbackID, "")
		h.startExtendFlow(ctx, b, userID, data)
	case strings.HasPrefix(data, "plan_"):
		h.handlePlanChosen(ctx, b, userID, data, callbackID)
	case data == "skip_email":
		h.handleSkipEmail(ctx, b, userID, callbackID)
	case strings.HasPrefix(data, "pay_"):
		h.handleMethodChosen(ctx, b, user, data, callbackID)
	default:
		h.answerCallback(ctx, b, callbackID, "")
	}
}

func (h *Handlers) showProfile(ctx context.Context, b *bot.Bot, user *types.User) {
	keys, _ := h.store.GetUserKeys(user.TelegramID)
	referrals, _ := h.store.GetReferralCount(user.TelegramID)
	h.send(ctx, b, user.TelegramID, messages.Profile(user, len(keys), referrals))
}

// showKeys renders the key list with positional numbers derived from the
// fetch ordering.
func (h *Handlers) showKeys(ctx context.Context, b *bot.Bot, userID int64) {
	keys, err := h.store.GetUserKeys(userID)
	if err != nil {
		h.send(ctx, b, userID, messages.ErrorDefault())
		return
	}
	if len(keys) == 0 {
		h.send(ctx, b, userID, messages.NoKeys())
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(keys)+1)
	for i, key := range keys {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         messages.KeyButton(i+1, key.ExpiryDate),
			CallbackData: fmt.Sprintf("key_%d", key.ID),
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "⬅️ Назад", CallbackData: "menu_main"}})
	h.sendWithKeyboard(ctx, b, userID, messages.KeyListHeader(), models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handlers) showKeyDetails(ctx context.Context, b *bot.Bot, userID int64, data string) {
	keyID, err := strconv.ParseInt(strings.TrimPrefix(data, "key_"), 10, 64)
	if err != nil {
		return
	}
	key, number, ok := h.ownedKey(userID, keyID)
	if !ok {
		h.send(ctx, b, userID, messages.ErrorDefault())
		return
	}

	kb := models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: "🔄 Продлить", CallbackData: fmt.Sprintf("extend_%d", keyID)}},
		{{Text: "⬅️ Назад", CallbackData: "menu_keys"}},
	}}
	h.sendWithKeyboard(ctx, b, userID, messages.KeyDetails(number, key), kb)
}

// ownedKey resolves a key and its positional number, refusing keys that
// belong to someone else.
func (h *Handlers) ownedKey(userID, keyID int64) (*types.VPNKey, int, bool) {
	keys, err := h.store.GetUserKeys(userID)
	if err != nil {
		return nil, 0, false
	}
	for i, key := range keys {
		if key.ID == keyID {
			return key, i + 1, true
		}
	}
	return nil, 0, false
}

func (h *Handlers) showReferralInfo(ctx context.Context, b *bot.Bot, user *types.User) {
	botUsername, _ := h.store.GetSetting(types.SettingBotUsername)
	percent, _ := h.store.GetSetting(types.SettingReferralPercentage)
	count, _ := h.store.GetReferralCount(user.TelegramID)
	link := fmt.Sprintf("https://t.me/%s?start=ref_%d", botUsername, user.TelegramID)
	h.send(ctx, b, user.TelegramID, messages.ReferralInfo(link, count, user.ReferralBalance, percent))
}
