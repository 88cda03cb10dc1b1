// Package handlers is the conversational surface: onboarding, the main
// menu, key management and the purchase flow that ends in a payment
// intent.
package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/internal/messages"
	"github.com/mwshark/shop-bot/internal/payments"
	"github.com/mwshark/shop-bot/store"
	"github.com/mwshark/shop-bot/types"
)

// Fulfiller hands zero-price orders (trial, admin issuance) to the
// fulfillment worker.
type Fulfiller interface {
	Enqueue(order types.Order) error
}

type Handlers struct {
	store    types.DataStore
	sessions *store.RedisSessionStore
	factory  *payments.Factory
	fulfill  Fulfiller
}

func NewHandlers(st types.DataStore, sessions *store.RedisSessionStore, factory *payments.Factory, fulfill Fulfiller) *Handlers {
	return &Handlers{
		store:    st,
		sessions: sessions,
		factory:  factory,
		fulfill:  fulfill,
	}
}

func (h *Handlers) Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.HandleStart)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, h.HandleCallback)
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil && update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/")
	}, h.HandleText)
}

// ensureUser loads the sender, registering on first contact. Returns nil
// for banned users (they get the ban notice and nothing else).
func (h *Handlers) ensureUser(ctx context.Context, b *bot.Bot, userID int64, username string, referrerID int64) *types.User {
	if err := h.store.RegisterUserIfNotExists(userID, username, referrerID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("register user")
	}
	user, err := h.store.GetUser(userID)
	if err != nil {
		h.send(ctx, b, userID, messages.ErrorDefault())
		return nil
	}
	if user.IsBanned {
		h.send(ctx, b, userID, messages.Banned())
		return nil
	}
	return user
}

func (h *Handlers) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
}

func (h *Handlers) sendWithKeyboard(ctx context.Context, b *bot.Bot, chatID int64, text string, kb models.InlineKeyboardMarkup) {
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: &kb,
	})
}

func (h *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string) {
	_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

func userFromUpdate(update *models.Update) (userID int64, username string) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.From.Username
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, update.CallbackQuery.From.Username
	}
	return 0, ""
}

// HandleText only matters while a purchase session waits for an email;
// anything else gets the main menu.
func (h *Handlers) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID, username := userFromUpdate(update)
	if userID == 0 {
		return
	}
	user := h.ensureUser(ctx, b, userID, username, 0)
	if user == nil {
		return
	}

	session, err := h.sessions.Get(userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Int64("user_id", userID).Msg("load purchase session")
		}
		h.sendMainMenu(ctx, b, userID)
		return
	}
	if session.Stage == store.StageWaitingEmail {
		h.handleEmailInput(ctx, b, userID, session, update.Message.Text)
		return
	}
	h.sendMainMenu(ctx, b, userID)
}
