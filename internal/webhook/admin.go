package webhook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwshark/shop-bot/internal/vpnapi"
	"github.com/mwshark/shop-bot/types"
)

const (
	sessionCookie = "shopbot_session"
	sessionTTL    = 24 * time.Hour
)

func (s *Server) issueSessionToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		Issuer:    "shop-bot",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(sessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	login, _ := s.store.GetSetting(types.SettingPanelLogin)
	password, _ := s.store.GetSetting(types.SettingPanelPassword)
	loginOK := subtle.ConstantTimeCompare([]byte(req.Login), []byte(login)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(password)) == 1
	if login == "" || !loginOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.issueSessionToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.SetCookie(sessionCookie, token, int(sessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDashboard(c *gin.Context) {
	users, _ := s.store.GetUserCount()
	banned, _ := s.store.GetBannedUserCount()
	totalKeys, _ := s.store.GetTotalKeysCount()
	activeKeys, _ := s.store.GetActiveKeysCount()
	expiredKeys, _ := s.store.GetExpiredKeysCount()
	revenue, _ := s.store.GetTotalSpentSum()
	dailyUsers, dailyKeys, _ := s.store.GetDailyStats(7)
	recent, _, _ := s.store.GetPaginatedTransactions(1, 5)

	resp := gin.H{
		"users":        users,
		"banned_users": banned,
		"total_keys":   totalKeys,
		"active_keys":  activeKeys,
		"expired_keys": expiredKeys,
		"total_income": revenue,
		"daily_users":  dailyUsers,
		"daily_keys":   dailyKeys,
		"recent_sales": recent,
	}

	// Provisioning balance is decorative on the dashboard, never a reason
	// to fail the request.
	if apiKey, _ := s.store.GetSetting(types.SettingVPNAPIKey); apiKey != "" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if balance, err := s.newVPNClient(apiKey).GetBalance(ctx); err == nil {
			resp["vpn_balance"] = balance.Balance
		} else {
			log.Warn().Err(err).Msg("dashboard: vpn balance unavailable")
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListUsers(c *gin.Context) {
	var (
		users []*types.User
		err   error
	)
	if q := c.Query("q"); q != "" {
		users, err = s.store.SearchUsers(q)
	} else {
		users, err = s.store.GetAllUsers()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := s.store.GetUser(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	keys, _ := s.store.GetUserKeys(id)
	referrals, _ := s.store.GetReferralCount(id)
	c.JSON(http.StatusOK, gin.H{"user": user, "keys": keys, "referrals": referrals})
}

func (s *Server) handleBanUser(c *gin.Context) {
	s.userAction(c, s.store.BanUser)
}

func (s *Server) handleUnbanUser(c *gin.Context) {
	s.userAction(c, s.store.UnbanUser)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	s.userAction(c, s.store.DeleteUser)
}

func (s *Server) userAction(c *gin.Context, action func(int64) error) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := action(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRevokeUserKeys revokes every key remotely where possible, then
// drops the local rows. Keys without a stable identifier can only be
// removed locally.
func (s *Server) handleRevokeUserKeys(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	apiKey, _ := s.store.GetSetting(types.SettingVPNAPIKey)
	if apiKey == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "provisioning api key is not configured"})
		return
	}
	client := s.newVPNClient(apiKey)

	keys, err := s.store.GetUserKeys(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	revoked := 0
	for _, key := range keys {
		if key.SubscriptionUUID == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		_, err := client.RevokeSubscription(ctx, key.SubscriptionUUID)
		cancel()
		if err != nil {
			log.Warn().Err(err).Int64("key_id", key.ID).Msg("remote revoke failed")
			continue
		}
		revoked++
	}

	if err := s.store.DeleteUserKeys(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "revoked": revoked, "deleted": len(keys)})
}

// handleIssueKey is manual grant issuance: it goes through the same
// fulfillment pipeline as a paid order, priced at zero.
func (s *Server) handleIssueKey(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Days int `json:"days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be positive"})
		return
	}
	if _, err := s.store.GetUser(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	order := types.Order{
		UserID:        id,
		Days:          req.Days,
		Price:         decimal.Zero,
		Action:        types.ActionNew,
		PaymentMethod: "Admin",
	}
	if err := s.fulfill.Enqueue(order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (s *Server) handleListPlans(c *gin.Context) {
	plans, err := s.store.GetAllPlans()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (s *Server) handleCreatePlan(c *gin.Context) {
	var req struct {
		Name  string  `json:"name"`
		Days  int     `json:"days"`
		Price float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Days <= 0 || req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, positive days and non-negative price are required"})
		return
	}
	id, err := s.store.CreatePlan(req.Name, req.Days, req.Price)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleDeletePlan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeletePlan(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.store.AllSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Credentials stay server-side.
	for _, key := range []string{
		types.SettingPanelPassword,
		types.SettingYooKassaSecretKey,
		types.SettingCryptoBotToken,
		types.SettingHeleketAPIKey,
		types.SettingPlategaSecretKey,
		types.SettingVPNAPIKey,
		types.SettingTONAPIKey,
	} {
		if settings[key] != "" {
			settings[key] = "********"
		}
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	updated := 0
	for key, value := range req {
		if _, known := types.DefaultSettings[key]; !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown setting %q", key)})
			return
		}
		if err := s.store.UpdateSetting(key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		updated++
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) handleListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	txs, total, err := s.store.GetPaginatedTransactions(page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": total, "page": page})
}

func (s *Server) handlePanelTariffs(c *gin.Context) {
	client, ok := s.panelClient(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	tariffs, err := client.GetTariffs(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tariffs": tariffs})
}

func (s *Server) handlePanelHistory(c *gin.Context) {
	client, ok := s.panelClient(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	history, err := client.GetHistory(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) panelClient(c *gin.Context) (*vpnapi.Client, bool) {
	apiKey, _ := s.store.GetSetting(types.SettingVPNAPIKey)
	if apiKey == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "vpn panel api key is not configured"})
		return nil, false
	}
	return s.newVPNClient(apiKey), true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
