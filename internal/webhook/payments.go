package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/internal/metrics"
	"github.com/mwshark/shop-bot/internal/payments"
	"github.com/mwshark/shop-bot/store"
	"github.com/mwshark/shop-bot/types"
)

// Every handler answers before fulfillment runs: verified orders are
// enqueued and the provider gets its 200 immediately.

// enqueue hands the order to fulfillment. When the handoff fails the
// handler answers 500 so the provider retries, and undo (when given) puts
// the already-consumed idempotency row back so the retry can still find it.
func (s *Server) enqueue(c *gin.Context, backend string, order types.Order, undo func() error) {
	if err := s.fulfill.Enqueue(order); err != nil {
		log.Error().Err(err).Str("backend", backend).Msg("fulfillment handoff failed")
		if undo != nil {
			if uerr := undo(); uerr != nil {
				log.Error().Err(uerr).Str("backend", backend).Msg("pending row not restored, order requires manual replay")
			}
		}
		metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeError).Inc()
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeAccepted).Inc()
	c.String(http.StatusOK, "OK")
}

func ignored(c *gin.Context, backend string) {
	metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeIgnored).Inc()
	c.String(http.StatusOK, "OK")
}

func malformed(c *gin.Context, backend string) {
	metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeMalformed).Inc()
	c.String(http.StatusBadRequest, "Error")
}

func forbidden(c *gin.Context, backend string) {
	metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeRejected).Inc()
	c.String(http.StatusForbidden, "Forbidden")
}

// handleYooKassa trusts only the metadata of a payment.succeeded event;
// every other event type is acknowledged and dropped.
func (s *Server) handleYooKassa(c *gin.Context) {
	const backend = "yookassa"
	var event struct {
		Event  string `json:"event"`
		Object struct {
			ID       string          `json:"id"`
			Metadata json.RawMessage `json:"metadata"`
		} `json:"object"`
	}
	if err := c.ShouldBindJSON(&event); err != nil {
		malformed(c, backend)
		return
	}
	if event.Event != "payment.succeeded" {
		ignored(c, backend)
		return
	}

	var order types.Order
	if err := json.Unmarshal(event.Object.Metadata, &order); err != nil {
		log.Warn().Err(err).Str("payment_id", event.Object.ID).Msg("yookassa metadata not decodable")
		malformed(c, backend)
		return
	}
	s.enqueue(c, backend, order, nil)
}

// handleCryptoBot rejects anything without a valid body signature before
// the JSON is even parsed.
func (s *Server) handleCryptoBot(c *gin.Context) {
	const backend = "cryptobot"
	body, err := c.GetRawData()
	if err != nil {
		malformed(c, backend)
		return
	}

	token, err := s.store.GetSetting(types.SettingCryptoBotToken)
	if err != nil || token == "" {
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	if !payments.VerifyCryptoBotSignature(body, token, c.GetHeader("Crypto-Pay-API-Signature")) {
		forbidden(c, backend)
		return
	}

	var update struct {
		UpdateType string `json:"update_type"`
		Payload    struct {
			InvoiceID int64  `json:"invoice_id"`
			Payload   string `json:"payload"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &update); err != nil {
		malformed(c, backend)
		return
	}
	if update.UpdateType != "invoice_paid" {
		ignored(c, backend)
		return
	}

	// The pending row is the idempotency token: absence means this invoice
	// was already handled or never ours.
	invoiceID := strconv.FormatInt(update.Payload.InvoiceID, 10)
	stored, err := s.store.ConsumePendingInvoice(invoiceID)
	if errors.Is(err, store.ErrNotFound) {
		ignored(c, backend)
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Error")
		return
	}

	// Prefer the echoed payload string, fall back to the stored copy when
	// the provider mangled it.
	order, err := payments.DecodePayload(update.Payload.Payload)
	if err != nil {
		log.Warn().Err(err).Str("payload", update.Payload.Payload).Msg("cryptobot payload not decodable, using stored copy")
		order = stored
	}
	s.enqueue(c, backend, *order, func() error {
		return s.store.CreatePendingInvoice(invoiceID, *stored)
	})
}

func (s *Server) handleHeleket(c *gin.Context) {
	const backend = "heleket"
	body, err := c.GetRawData()
	if err != nil {
		malformed(c, backend)
		return
	}

	apiKey, err := s.store.GetSetting(types.SettingHeleketAPIKey)
	if err != nil || apiKey == "" {
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	if !payments.VerifyHeleketCallback(body, apiKey) {
		forbidden(c, backend)
		return
	}

	var callback struct {
		Status      string `json:"status"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &callback); err != nil {
		malformed(c, backend)
		return
	}
	if callback.Status != "paid" && callback.Status != "paid_over" {
		ignored(c, backend)
		return
	}

	var order types.Order
	if err := json.Unmarshal([]byte(callback.Description), &order); err != nil {
		malformed(c, backend)
		return
	}
	s.enqueue(c, backend, order, nil)
}

// handlePlatega authenticates by shared-secret header pair plus an IP
// allow-list on the immediate caller (first hop of X-Forwarded-For when
// present).
func (s *Server) handlePlatega(c *gin.Context) {
	const backend = "platega"
	merchantID, _ := s.store.GetSetting(types.SettingPlategaMerchantID)
	secret, _ := s.store.GetSetting(types.SettingPlategaSecretKey)
	if merchantID == "" || secret == "" {
		c.String(http.StatusInternalServerError, "Error")
		return
	}

	headerOK := subtle.ConstantTimeCompare([]byte(c.GetHeader("X-MerchantId")), []byte(merchantID)) == 1 &&
		subtle.ConstantTimeCompare([]byte(c.GetHeader("X-Secret")), []byte(secret)) == 1
	if !headerOK || !s.plategaCallerAllowed(c) {
		forbidden(c, backend)
		return
	}

	var callback struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&callback); err != nil || callback.ID == "" {
		malformed(c, backend)
		return
	}
	if callback.Status != "CONFIRMED" {
		ignored(c, backend)
		return
	}

	order, err := s.store.ConsumePendingCardTransaction(callback.ID)
	if errors.Is(err, store.ErrNotFound) {
		ignored(c, backend)
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	s.enqueue(c, backend, *order, func() error {
		return s.store.CreatePendingCardTransaction(callback.ID, *order)
	})
}

func (s *Server) plategaCallerAllowed(c *gin.Context) bool {
	allowed, _ := s.store.GetSetting(types.SettingPlategaAllowedIPs)
	if strings.TrimSpace(allowed) == "" {
		return true
	}

	caller := c.GetHeader("X-Forwarded-For")
	if caller != "" {
		caller = strings.TrimSpace(strings.Split(caller, ",")[0])
	} else {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		caller = host
	}

	for _, ip := range strings.Split(allowed, ",") {
		if strings.TrimSpace(ip) == caller {
			return true
		}
	}
	return false
}

// handleTON has no signature scheme. Trust lives in the transfer comment:
// only comments that match a pending transaction do anything, everything
// else is silently acknowledged.
func (s *Server) handleTON(c *gin.Context) {
	const backend = "ton"
	var event struct {
		TxID          string     `json:"tx_id"`
		Txs           []tonEvent `json:"txs"`
		InProgressTxs []tonEvent `json:"in_progress_txs"`
	}
	if err := c.ShouldBindJSON(&event); err != nil {
		malformed(c, backend)
		return
	}
	if event.TxID == "" {
		ignored(c, backend)
		return
	}

	matched := false
	for _, tx := range append(event.InProgressTxs, event.Txs...) {
		comment := tx.InMsg.DecodedComment
		if comment == "" {
			continue
		}
		amountTON := float64(tx.InMsg.Value) / 1_000_000_000

		order, err := s.store.CompleteTONTransaction(comment, amountTON)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			c.String(http.StatusInternalServerError, "Error")
			return
		}

		matched = true
		if err := s.fulfill.Enqueue(*order); err != nil {
			log.Error().Err(err).Str("comment", comment).Msg("fulfillment handoff failed")
			if uerr := s.store.ReopenTONTransaction(comment); uerr != nil {
				log.Error().Err(uerr).Str("comment", comment).Msg("transaction not reopened, order requires manual replay")
			}
			metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeError).Inc()
			c.String(http.StatusInternalServerError, "Error")
			return
		}
		metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeAccepted).Inc()
	}

	if !matched {
		metrics.WebhookEvents.WithLabelValues(backend, metrics.OutcomeIgnored).Inc()
	}
	c.String(http.StatusOK, "OK")
}

type tonEvent struct {
	InMsg struct {
		DecodedComment string `json:"decoded_comment"`
		Value          int64  `json:"value"`
	} `json:"in_msg"`
}
