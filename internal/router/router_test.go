package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/parkpro/service-core-go/internal/booking"
	bookingrepo "github.com/ovaphlow/parkpro/service-core-go/internal/booking/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/fastag"
	fastagrepo "github.com/ovaphlow/parkpro/service-core-go/internal/fastag/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/notify"
	"github.com/ovaphlow/parkpro/service-core-go/internal/parking"
	parkingrepo "github.com/ovaphlow/parkpro/service-core-go/internal/parking/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/token"
	"github.com/ovaphlow/parkpro/service-core-go/internal/user"
	userrepo "github.com/ovaphlow/parkpro/service-core-go/internal/user/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/verification"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/utilities"
)

type discard struct{}

func (discard) Enqueue(notify.Message) bool { return true }

func newTestDeps(t *testing.T) (Deps, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "postgres")

	logger := zap.NewNop().Sugar()
	ids := utilities.NewIDGenerator(1)
	tokens := token.NewService("router-secret", "parkpro", time.Hour)
	reg := prometheus.NewRegistry()
	notify.NewMetrics(reg).Results.WithLabelValues(notify.ResultSent).Inc()

	users := user.NewUserService(userrepo.NewUserRepo(db), user.NewBcryptHasher(bcrypt.MinCost, logger),
		verification.NewRegistry(), discard{}, ids, logger)

	return Deps{
		Users:    user.NewHandler(users, tokens, logger),
		Parking:  parking.NewHandler(parking.NewService(parkingrepo.NewParkingRepo(db), ids), logger),
		Bookings: booking.NewHandler(booking.NewService(bookingrepo.NewBookingRepo(db), ids), logger),
		Fastag:   fastag.NewHandler(fastag.NewService(fastagrepo.NewFastagRepo(db), ids), logger),
		Tokens:   tokens,
		Gatherer: reg,
	}, mock
}

func newTestHandler(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	d, mock := newTestDeps(t)
	return RegisterRoutes(zap.NewNop().Sugar(), d), mock
}

func TestRouter_HealthAndHeaders(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `parkpro_notifications_total{result="sent"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type, x-user-email")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "content-type, x-user-email", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestRouter_ChangePasswordIdentity(t *testing.T) {
	h, _ := newTestHandler(t)
	form := "current_password=a&new_password=b"

	req := httptest.NewRequest(http.MethodPost, "/change-password", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing caller identity")

	req = httptest.NewRequest(http.MethodPost, "/change-password", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid token"}`, rec.Body.String())
}

func TestRouter_OptionalDeps(t *testing.T) {
	d, _ := newTestDeps(t)
	d.Tokens = nil
	d.Gatherer = nil
	h := RegisterRoutes(zap.NewNop().Sugar(), d)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// without a parser a bearer token is not an identity
	req := httptest.NewRequest(http.MethodPost, "/change-password", strings.NewReader("current_password=a&new_password=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer anything")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing caller identity")
}

func TestRouter_RoutesReachHandlers(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`FROM stations`).WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "price_per_hour", "total_spots", "available_spots", "created_at"}))

	tests := []struct {
		method, path string
		wantStatus   int
	}{
		{http.MethodGet, "/parking-spots", http.StatusOK},
		{http.MethodGet, "/stations/bad!", http.StatusBadRequest},
		{http.MethodGet, "/slotbookings/bad!", http.StatusBadRequest},
		{http.MethodPut, "/bookings/bad!/cancel", http.StatusBadRequest},
		{http.MethodPost, "/fastag/recharge", http.StatusBadRequest},
		{http.MethodDelete, "/parking-spots", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("")))
		assert.Equal(t, tt.wantStatus, rec.Code, "%s %s", tt.method, tt.path)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(zap.NewNop().Sugar())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, rec.Body.String())
}
