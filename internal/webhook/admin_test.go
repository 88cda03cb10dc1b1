package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwshark/shop-bot/types"
)

func login(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()
	w := post(srv, "/api/login", `{"login":"admin","password":"admin"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == sessionCookie {
			return cookie
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func authedRequest(srv *Server, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := post(srv, "/api/login", `{"login":"admin","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredForAdminRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := authedRequest(srv, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlanCRUD(t *testing.T) {
	srv, st, _ := newTestServer(t)
	cookie := login(t, srv)

	w := authedRequest(srv, http.MethodPost, "/api/plans", `{"name":"1 месяц","days":30,"price":950}`, cookie)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	plans, err := st.GetAllPlans()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "1 месяц", plans[0].Name)

	w = authedRequest(srv, http.MethodDelete, "/api/plans/"+strconv.FormatInt(created.ID, 10), "", cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	plans, err = st.GetAllPlans()
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestBanAndUnbanUser(t *testing.T) {
	srv, st, _ := newTestServer(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))
	cookie := login(t, srv)

	w := authedRequest(srv, http.MethodPost, "/api/users/555/ban", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	user, _ := st.GetUser(555)
	assert.True(t, user.IsBanned)

	w = authedRequest(srv, http.MethodPost, "/api/users/555/unban", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	user, _ = st.GetUser(555)
	assert.False(t, user.IsBanned)
}

func TestManualKeyIssuanceGoesThroughQueue(t *testing.T) {
	srv, st, enq := newTestServer(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))
	cookie := login(t, srv)

	w := authedRequest(srv, http.MethodPost, "/api/users/555/keys", `{"days":30}`, cookie)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 1, enq.count())
	assert.Equal(t, int64(555), enq.orders[0].UserID)
	assert.True(t, enq.orders[0].Price.IsZero())
	assert.Equal(t, "Admin", enq.orders[0].PaymentMethod)
}

func TestUpdateSettingsRejectsUnknownKey(t *testing.T) {
	srv, st, _ := newTestServer(t)
	cookie := login(t, srv)

	w := authedRequest(srv, http.MethodPut, "/api/settings", `{"no_such_setting":"x"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = authedRequest(srv, http.MethodPut, "/api/settings", `{"trial_enabled":"false"}`, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	v, err := st.GetSetting(types.SettingTrialEnabled)
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestSettingsResponseMasksCredentials(t *testing.T) {
	srv, st, _ := newTestServer(t)
	require.NoError(t, st.UpdateSetting(types.SettingCryptoBotToken, "super-secret-token"))
	cookie := login(t, srv)

	w := authedRequest(srv, http.MethodGet, "/api/settings", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "super-secret-token")
}
