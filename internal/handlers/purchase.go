package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwshark/shop-bot/internal/messages"
	"github.com/mwshark/shop-bot/internal/payments"
	"github.com/mwshark/shop-bot/store"
	"github.com/mwshark/shop-bot/types"
)

// showPlans starts the purchase flow for a new key or the extension of an
// existing one.
func (h *Handlers) showPlans(ctx context.Context, b *bot.Bot, userID int64, action types.OrderAction, keyID int64) {
	plans, err := h.store.GetAllPlans()
	if err != nil || len(plans) == 0 {
		h.send(ctx, b, userID, messages.PlanGone())
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(plans)+1)
	for _, plan := range plans {
		data := fmt.Sprintf("plan_new_%d", plan.ID)
		if action == types.ActionExtend {
			data = fmt.Sprintf("plan_ext_%d_%d", plan.ID, keyID)
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         messages.PlanButton(plan),
			CallbackData: data,
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "⬅️ Назад", CallbackData: "menu_main"}})

	text := messages.ChoosePlan()
	if action == types.ActionExtend {
		if _, number, ok := h.ownedKey(userID, keyID); ok {
			text = messages.ChooseExtendPlan(number)
		}
	}
	h.sendWithKeyboard(ctx, b, userID, text, models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handlers) startExtendFlow(ctx context.Context, b *bot.Bot, userID int64, data string) {
	keyID, err := strconv.ParseInt(strings.TrimPrefix(data, "extend_"), 10, 64)
	if err != nil {
		return
	}
	if _, _, ok := h.ownedKey(userID, keyID); !ok {
		h.send(ctx, b, userID, messages.ErrorDefault())
		return
	}
	h.showPlans(ctx, b, userID, types.ActionExtend, keyID)
}

// handlePlanChosen opens a purchase session and asks for a receipt email.
func (h *Handlers) handlePlanChosen(ctx context.Context, b *bot.Bot, userID int64, data, callbackID string) {
	session := &store.PurchaseSession{Stage: store.StageWaitingEmail, Action: types.ActionNew}

	switch {
	case strings.HasPrefix(data, "plan_new_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "plan_new_"), 10, 64)
		if err != nil {
			return
		}
		session.PlanID = id
	case strings.HasPrefix(data, "plan_ext_"):
		parts := strings.Split(strings.TrimPrefix(data, "plan_ext_"), "_")
		if len(parts) != 2 {
			return
		}
		planID, err1 := strconv.ParseInt(parts[0], 10, 64)
		keyID, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return
		}
		if _, _, ok := h.ownedKey(userID, keyID); !ok {
			h.answerCallback(ctx, b, callbackID, messages.ErrorDefault())
			return
		}
		session.PlanID = planID
		session.Action = types.ActionExtend
		session.KeyID = keyID
	default:
		return
	}

	if _, err := h.store.GetPlanByID(session.PlanID); err != nil {
		h.answerCallback(ctx, b, callbackID, "")
		h.send(ctx, b, userID, messages.PlanGone())
		return
	}
	if err := h.sessions.Set(userID, session); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("save purchase session")
		h.answerCallback(ctx, b, callbackID, messages.ErrorDefault())
		return
	}

	h.answerCallback(ctx, b, callbackID, "")
	kb := models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: "➡️ Пропустить", CallbackData: "skip_email"}},
	}}
	h.sendWithKeyboard(ctx, b, userID, messages.AskEmail(), kb)
}

func (h *Handlers) handleEmailInput(ctx context.Context, b *bot.Bot, userID int64, session *store.PurchaseSession, text string) {
	email := strings.TrimSpace(text)
	if !looksLikeEmail(email) {
		h.send(ctx, b, userID, messages.InvalidEmail())
		return
	}
	session.CustomerEmail = email
	h.advanceToMethodChoice(ctx, b, userID, session)
}

func (h *Handlers) handleSkipEmail(ctx context.Context, b *bot.Bot, userID int64, callbackID string) {
	session, err := h.sessions.Get(userID)
	if err != nil {
		h.answerCallback(ctx, b, callbackID, "")
		h.send(ctx, b, userID, messages.SessionExpired())
		return
	}
	h.answerCallback(ctx, b, callbackID, "")
	session.CustomerEmail = ""
	h.advanceToMethodChoice(ctx, b, userID, session)
}

func (h *Handlers) advanceToMethodChoice(ctx context.Context, b *bot.Bot, userID int64, session *store.PurchaseSession) {
	session.Stage = store.StageWaitingMethod
	if err := h.sessions.Set(userID, session); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("save purchase session")
		h.send(ctx, b, userID, messages.ErrorDefault())
		return
	}
	h.sendWithKeyboard(ctx, b, userID, messages.ChooseMethod(), h.methodKeyboard())
}

// methodKeyboard lists only the backends whose credentials are configured.
func (h *Handlers) methodKeyboard() models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, 5)
	if v, _ := h.store.GetSetting(types.SettingYooKassaShopID); v != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: "💳 Банковская карта", CallbackData: "pay_yookassa"}})
	}
	if sbp, _ := h.store.GetSetting(types.SettingSBPEnabled); sbp == "true" {
		if v, _ := h.store.GetSetting(types.SettingPlategaMerchantID); v != "" {
			rows = append(rows, []models.InlineKeyboardButton{{Text: "🏦 СБП", CallbackData: "pay_platega"}})
		}
	}
	if v, _ := h.store.GetSetting(types.SettingCryptoBotToken); v != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: "🪙 CryptoBot", CallbackData: "pay_cryptobot"}})
	}
	if v, _ := h.store.GetSetting(types.SettingHeleketMerchantID); v != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: "🌐 Криптовалюта", CallbackData: "pay_heleket"}})
	}
	if v, _ := h.store.GetSetting(types.SettingTONWalletAddress); v != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: "💎 TON", CallbackData: "pay_ton"}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "⬅️ В меню", CallbackData: "menu_main"}})
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *Handlers) handleMethodChosen(ctx context.Context, b *bot.Bot, user *types.User, data, callbackID string) {
	userID := user.TelegramID
	session, err := h.sessions.Get(userID)
	if err != nil || session.Stage != store.StageWaitingMethod {
		h.answerCallback(ctx, b, callbackID, "")
		h.send(ctx, b, userID, messages.SessionExpired())
		return
	}
	plan, err := h.store.GetPlanByID(session.PlanID)
	if err != nil {
		h.answerCallback(ctx, b, callbackID, "")
		h.send(ctx, b, userID, messages.PlanGone())
		return
	}

	method := methodLabel(strings.TrimPrefix(data, "pay_"))
	if method == "" {
		h.answerCallback(ctx, b, callbackID, "")
		return
	}

	order, err := h.factory.NewOrder(user, plan, session.Action, session.KeyID, session.CustomerEmail, method)
	if err != nil {
		h.answerCallback(ctx, b, callbackID, "")
		h.send(ctx, b, userID, messages.ErrorDefault())
		return
	}

	h.answerCallback(ctx, b, callbackID, "")

	var text string
	switch method {
	case types.MethodYooKassa:
		url, err := h.factory.CreateYooKassaPayment(ctx, order, plan.Name)
		text = h.intentResult(userID, url, err)
	case types.MethodCryptoBot:
		url, err := h.factory.CreateCryptoBotInvoice(ctx, order, plan.Name)
		text = h.intentResult(userID, url, err)
	case types.MethodHeleket:
		url, err := h.factory.CreateHeleketInvoice(ctx, order)
		text = h.intentResult(userID, url, err)
	case types.MethodPlatega:
		url, err := h.factory.CreatePlategaTransaction(ctx, order, plan.Name)
		text = h.intentResult(userID, url, err)
	case types.MethodTON:
		transfer, err := h.factory.RegisterTONTransfer(order)
		if err != nil {
			text = h.intentResult(userID, "", err)
		} else {
			text = messages.TONInstructions(transfer.WalletAddress, transfer.Comment, transfer.AmountRUB)
		}
	}

	h.send(ctx, b, userID, text)
	_ = h.sessions.Clear(userID)
}

func (h *Handlers) intentResult(userID int64, url string, err error) string {
	if errors.Is(err, payments.ErrBackendUnavailable) {
		return messages.BackendUnavailable()
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("payment intent failed")
		return messages.ErrorDefault()
	}
	return messages.PaymentLink(url)
}

// handleTrial issues a one-time zero-price key through the regular
// fulfillment pipeline.
func (h *Handlers) handleTrial(ctx context.Context, b *bot.Bot, user *types.User, callbackID string) {
	userID := user.TelegramID
	enabled, _ := h.store.GetSetting(types.SettingTrialEnabled)
	if enabled != "true" || user.TrialUsed {
		h.answerCallback(ctx, b, callbackID, "")
		h.send(ctx, b, userID, messages.TrialUnavailable())
		return
	}

	daysStr, _ := h.store.GetSetting(types.SettingTrialDurationDays)
	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		days = 3
	}

	if err := h.store.SetTrialUsed(userID); err != nil {
		h.answerCallback(ctx, b, callbackID, messages.ErrorDefault())
		return
	}
	order := types.Order{
		UserID:        userID,
		Days:          days,
		Price:         decimal.Zero,
		Action:        types.ActionNew,
		PaymentMethod: "Trial",
	}
	if err := h.fulfill.Enqueue(order); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("trial handoff failed")
		h.answerCallback(ctx, b, callbackID, messages.ErrorDefault())
		return
	}
	h.answerCallback(ctx, b, callbackID, "")
	h.send(ctx, b, userID, messages.TrialIssued())
}

func methodLabel(key string) string {
	switch key {
	case "yookassa":
		return types.MethodYooKassa
	case "cryptobot":
		return types.MethodCryptoBot
	case "heleket":
		return types.MethodHeleket
	case "platega":
		return types.MethodPlatega
	case "ton":
		return types.MethodTON
	}
	return ""
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(s, " \t\n")
}
