package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"busussd/internal/domain/models"
	h "busussd/internal/http/handlers"
	"busussd/internal/repositories"
	"busussd/internal/services"
	"busussd/internal/session"
	"busussd/internal/ussd"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var adminSecret = []byte("test-secret")

type downStore struct {
	*repositories.MemoryStore
}

func (downStore) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func newTestRouter(t *testing.T, store repositories.Store, ussdRate int) *gin.Engine {
	t.Helper()
	return newTestRouterWith(t, store, Options{
		USSDRatePer15m: ussdRate,
		OpsRatePer15m:  200,
		AdminSecret:    adminSecret,
		AllowedOrigins: []string{"http://dashboard.test"},
	})
}

func newTestRouterWith(t *testing.T, store repositories.Store, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	bookings := services.NewBookingService(store, log)
	sessions := session.NewMemoryStore(session.DefaultTTL)
	auth := &services.OperatorAuth{Store: store, Log: log}
	handler := &h.Handler{
		Customer: &ussd.CustomerMenu{Bookings: bookings, Sessions: sessions, Log: log},
		Operator: &ussd.OperatorMenu{
			Bookings: bookings,
			Auth:     auth,
			Sessions: sessions,
			Log:      log,
		},
		Auth:         auth,
		Store:        store,
		Manifest:     services.ManifestService{Store: store},
		Log:          log,
		QueryTimeout: time.Second,
	}
	return NewRouter(opts, handler, log)
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminRequest(t *testing.T, r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndDBPing(t *testing.T) {
	r := newTestRouter(t, repositories.NewMemoryStore(), 100)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/db-ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":1}`, w.Body.String())

	down := newTestRouter(t, downStore{repositories.NewMemoryStore()}, 100)
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/db-ping", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":0}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestUSSDEndpointsSpeakPlainText(t *testing.T) {
	store := repositories.NewMemoryStore()
	store.PutBus(models.Bus{Route: "Juba - Bor", DepartureTime: time.Now().Add(time.Hour), TotalSeats: 5, AvailableSeats: 5, Price: 8000})
	r := newTestRouter(t, store, 100)

	w := postForm(r, "/ussd", url.Values{"sessionId": {"abc"}, "serviceCode": {"*384#"}, "phoneNumber": {"+211900000009"}, "text": {""}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "CON Welcome to Bus Ticketing"))

	w = postForm(r, "/ussd", url.Values{"sessionId": {"abc"}, "phoneNumber": {"+211900000009"}, "text": {"2"}})
	assert.Contains(t, w.Body.String(), "1. Juba - Bor")

	w = postForm(r, "/ussd-ops", url.Values{"sessionId": {"op1"}, "phoneNumber": {"+211955000000"}, "text": {""}})
	assert.Equal(t, "CON Enter operator PIN:", w.Body.String())

	w = postForm(r, "/ussd", url.Values{"text": {"1"}})
	assert.Equal(t, "END Invalid request.", w.Body.String())
}

func TestUSSDRateLimit(t *testing.T) {
	r := newTestRouter(t, repositories.NewMemoryStore(), 2)
	form := url.Values{"sessionId": {"abc"}, "text": {""}}

	assert.Equal(t, http.StatusOK, postForm(r, "/ussd", form).Code)
	assert.Equal(t, http.StatusOK, postForm(r, "/ussd", form).Code)
	w := postForm(r, "/ussd", form)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "END Too many requests. Try again later.", w.Body.String())

	// The operator endpoint has its own budget.
	assert.Equal(t, http.StatusOK, postForm(r, "/ussd-ops", form).Code)
}

func postForwarded(r http.Handler, forwardedFor string) int {
	form := url.Values{"sessionId": {"fwd-" + forwardedFor}, "text": {""}}
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestUSSDRateLimitBehindTrustedProxy(t *testing.T) {
	r := newTestRouterWith(t, repositories.NewMemoryStore(), Options{
		USSDRatePer15m: 1,
		OpsRatePer15m:  1,
		TrustedProxies: []string{"10.0.0.1"},
	})

	assert.Equal(t, http.StatusOK, postForwarded(r, "41.79.0.10"))
	assert.Equal(t, http.StatusOK, postForwarded(r, "41.79.0.11"))
	assert.Equal(t, http.StatusTooManyRequests, postForwarded(r, "41.79.0.10"))
}

func TestUSSDRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	r := newTestRouterWith(t, repositories.NewMemoryStore(), Options{USSDRatePer15m: 1, OpsRatePer15m: 1})

	assert.Equal(t, http.StatusOK, postForwarded(r, "41.79.0.10"))
	assert.Equal(t, http.StatusTooManyRequests, postForwarded(r, "41.79.0.11"))
}

func TestAdminRequiresAdminToken(t *testing.T) {
	r := newTestRouter(t, repositories.NewMemoryStore(), 100)

	w := adminRequest(t, r, http.MethodPost, "/api/admin/operators", `{"name":"x","pin":"1234"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = adminRequest(t, r, http.MethodPost, "/api/admin/operators", `{"name":"x","pin":"1234"}`, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	clerk, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "clerk",
		"role": "clerk",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(adminSecret)
	require.NoError(t, err)
	w = adminRequest(t, r, http.MethodPost, "/api/admin/operators", `{"name":"x","pin":"1234"}`, clerk)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCORSPreflight(t *testing.T) {
	r := newTestRouter(t, repositories.NewMemoryStore(), 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/buses", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://dashboard.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminFlow(t *testing.T) {
	store := repositories.NewMemoryStore()
	r := newTestRouter(t, store, 100)
	token, err := services.IssueAdminToken(adminSecret, "ops-lead", time.Hour)
	require.NoError(t, err)

	w := adminRequest(t, r, http.MethodPost, "/api/admin/operators", `{"name":"Nile Coaches","pin":"2468"}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "2468")
	var op models.Operator
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &op))

	w = adminRequest(t, r, http.MethodPost, "/api/admin/operators", `{"name":"Short","pin":"12"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = adminRequest(t, r, http.MethodPost, "/api/admin/operators", `{"name":"Wau Express","pin":"2468"}`, token)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	dep := time.Now().Add(4 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"route":"Juba - Kapoeta","operator_id":%d,"departure_time":%q,"total_seats":12,"price":18000}`, op.ID, dep)
	w = adminRequest(t, r, http.MethodPost, "/api/admin/buses", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bus models.Bus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bus))
	assert.Equal(t, 12, bus.AvailableSeats)

	w = adminRequest(t, r, http.MethodPost, "/api/admin/buses", `{"route":"x","operator_id":1,"departure_time":"tomorrow","total_seats":3}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = adminRequest(t, r, http.MethodPost, "/api/admin/buses", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err = services.NewBookingService(store, zap.NewNop()).WalkIn(context.Background(), bus.ID)
	require.NoError(t, err)

	w = adminRequest(t, r, http.MethodGet, fmt.Sprintf("/api/admin/buses/%d/bookings", bus.ID), "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seat_number":1`)

	w = adminRequest(t, r, http.MethodGet, "/api/admin/buses/999/bookings", "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = adminRequest(t, r, http.MethodGet, "/api/admin/buses/abc/manifest", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = adminRequest(t, r, http.MethodGet, fmt.Sprintf("/api/admin/buses/%d/manifest", bus.ID), "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "MANIFEST_")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestNoRoute(t *testing.T) {
	r := newTestRouter(t, repositories.NewMemoryStore(), 100)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
