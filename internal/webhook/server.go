// Package webhook is the HTTP surface: one inbound route per payment
// backend, a JSON admin API and the Prometheus scrape endpoint.
package webhook

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/internal/vpnapi"
	"github.com/mwshark/shop-bot/store"
	"github.com/mwshark/shop-bot/types"
)

// Enqueuer hands verified orders to the fulfillment worker.
type Enqueuer interface {
	Enqueue(order types.Order) error
}

type Server struct {
	store     *store.SQLiteStore
	fulfill   Enqueuer
	jwtSecret []byte

	// Built per request from the configured key; swapped out in tests.
	newVPNClient func(apiKey string) *vpnapi.Client

	engine *gin.Engine
}

type Option func(*Server)

// WithVPNClientFactory overrides how the provisioning client is built,
// for tests.
func WithVPNClientFactory(f func(apiKey string) *vpnapi.Client) Option {
	return func(s *Server) { s.newVPNClient = f }
}

func NewServer(st *store.SQLiteStore, fulfill Enqueuer, jwtSecret string, opts ...Option) *Server {
	s := &Server{
		store:     st,
		fulfill:   fulfill,
		jwtSecret: []byte(jwtSecret),
		newVPNClient: func(apiKey string) *vpnapi.Client {
			return vpnapi.New(apiKey)
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	s.routes(engine)
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/yookassa-webhook", s.handleYooKassa)
	r.POST("/cryptobot-webhook", s.handleCryptoBot)
	r.POST("/heleket-webhook", s.handleHeleket)
	r.POST("/platega-webhook", s.handlePlatega)
	r.POST("/ton-webhook", s.handleTON)

	api := r.Group("/api")
	api.POST("/login", s.handleLogin)

	authed := api.Group("", s.requireAuth())
	authed.POST("/logout", s.handleLogout)
	authed.GET("/dashboard", s.handleDashboard)
	authed.GET("/users", s.handleListUsers)
	authed.GET("/users/:id", s.handleGetUser)
	authed.POST("/users/:id/ban", s.handleBanUser)
	authed.POST("/users/:id/unban", s.handleUnbanUser)
	authed.POST("/users/:id/revoke", s.handleRevokeUserKeys)
	authed.POST("/users/:id/keys", s.handleIssueKey)
	authed.DELETE("/users/:id", s.handleDeleteUser)
	authed.GET("/plans", s.handleListPlans)
	authed.POST("/plans", s.handleCreatePlan)
	authed.DELETE("/plans/:id", s.handleDeletePlan)
	authed.GET("/settings", s.handleGetSettings)
	authed.PUT("/settings", s.handleUpdateSettings)
	authed.GET("/transactions", s.handleListTransactions)
	authed.GET("/panel/tariffs", s.handlePanelTariffs)
	authed.GET("/panel/history", s.handlePanelHistory)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
