package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation-engine/internal/config"
	"github.com/iliyamo/hotel-reservation-engine/internal/handler"
	"github.com/iliyamo/hotel-reservation-engine/internal/idempotency"
	"github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"
	"github.com/iliyamo/hotel-reservation-engine/internal/lock"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
	"github.com/iliyamo/hotel-reservation-engine/internal/router"
	"github.com/iliyamo/hotel-reservation-engine/internal/service"
	"github.com/iliyamo/hotel-reservation-engine/internal/utils"
)

const secret = "handler-secret"

type server struct {
	e *echo.Echo
}

func newServer(t *testing.T) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger, _ := test.NewNullLogger()

	engine := lifecycle.NewEngine(repository.NewMemoryStore(), lock.New(rdb, lock.WithRetry(2*time.Millisecond)),
		lifecycle.WithLogger(logger),
		lifecycle.WithCardKey([]byte("k")),
	)
	idem := idempotency.New(rdb, idempotency.WithPollInterval(2*time.Millisecond), idempotency.WithLogger(logger))
	svc := service.NewBookingService(engine, idem, logger)

	e := echo.New()
	router.RegisterRoutes(e, map[string]handler.Check{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	router.RegisterAPI(e, router.API{
		Reservations: handler.NewReservationHandler(svc, logger),
		Points:       handler.NewPointsHandler(svc, logger),
	}, secret, config.RateLimitConfig{Enabled: false}, rdb)
	return &server{e: e}
}

func token(t *testing.T, sub string, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, sub, string(role), time.Hour)
	require.NoError(t, err)
	return tok.Token
}

// do sends body (if any) as JSON with the given token and idempotency key.
func (s *server) do(method, path, tok, key, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	if key != "" {
		req.Header.Set(handler.HeaderIdempotencyKey, key)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func bookingBody() string {
	in := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	out := in.Add(48 * time.Hour)
	return `{"room_id":"201","suite_type":"MASTER","rate_per_night":"150",` +
		`"checkin":"` + in.Format(time.RFC3339) + `","checkout":"` + out.Format(time.RFC3339) + `"}`
}

const approvedPayment = `{"amount":"300","method":"CARD","card_number":"4242 4242 4242 4242","gateway_result":"APPROVED","gateway_ref":"gw-9"}`

func (s *server) book(t *testing.T, tok string) model.Reservation {
	t.Helper()
	rec := s.do(http.MethodPost, "/v1/reservations", tok, "", bookingBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Reservation](t, rec)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_ReportsFailingCheck(t *testing.T) {
	e := echo.New()
	router.RegisterRoutes(e, map[string]handler.Check{
		"database": func(context.Context) error { return errors.New("down") },
		"redis":    func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failing":["database"]`)
}

func TestRequiresToken(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/v1/reservations", "", "", bookingBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, rec).Error)
}

func TestStayOverHTTP(t *testing.T) {
	s := newServer(t)
	guest := token(t, "c1", model.RoleClient)
	desk := token(t, "r1", model.RoleReceptionist)

	res := s.book(t, guest)
	assert.Equal(t, "c1", res.ClientID)
	assert.Equal(t, model.StatusPendingPayment, res.Status)
	base := "/v1/reservations/" + res.ID

	rec := s.do(http.MethodPost, base+"/payments", guest, "pay-1", approvedPayment)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paid := decode[lifecycle.PaymentOutcome](t, rec)
	assert.Equal(t, model.StatusConfirmed, paid.Reservation.Status)
	assert.Equal(t, "************4242", paid.Payment.CardMask)
	assert.NotContains(t, rec.Body.String(), "4242 4242 4242 4242")

	// the guest cannot check in
	rec = s.do(http.MethodPost, base+"/transitions/check-in", guest, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "transition_forbidden", decode[errorBody](t, rec).Error)

	rec = s.do(http.MethodPost, base+"/transitions/check-in", desk, "", `{"guests":2,"deposit":"50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusCheckedIn, decode[model.Reservation](t, rec).Status)

	rec = s.do(http.MethodPost, base+"/transitions/CHECK_OUT", desk, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusCheckedOut, decode[model.Reservation](t, rec).Status)

	rec = s.do(http.MethodGet, base, guest, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[lifecycle.View](t, rec)
	require.NotNil(t, view.Stay)
	assert.Equal(t, model.StayCheckedOut, view.Stay.Status)
	assert.Len(t, view.Payments, 1)

	rec = s.do(http.MethodGet, "/v1/clients/c1/points/ledger", guest, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ledger := decode[struct {
		Entries []model.LedgerEntry `json:"entries"`
	}](t, rec)
	require.Len(t, ledger.Entries, 1)
	assert.Equal(t, model.ReasonCheckoutAccrual, ledger.Entries[0].Reason)
	assert.Equal(t, res.ID, ledger.Entries[0].ReservationID)

	rec = s.do(http.MethodGet, "/v1/clients/c1/points", guest, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.Entries[0].BalanceAfter, decode[model.PointsAccount](t, rec).Balance)

	// the audit is front desk only
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, base+"/audit", guest, "", "").Code)
	rec = s.do(http.MethodGet, base+"/audit", desk, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[struct {
		Drift bool `json:"drift"`
	}](t, rec).Drift)
}

func TestSubmitPayment_KeyHandling(t *testing.T) {
	s := newServer(t)
	guest := token(t, "c1", model.RoleClient)
	res := s.book(t, guest)
	path := "/v1/reservations/" + res.ID + "/payments"

	rec := s.do(http.MethodPost, path, guest, "", approvedPayment)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_idempotency_key", decode[errorBody](t, rec).Error)

	// a keyless payment on another booking is refused the same way
	other := s.book(t, guest)
	rec = s.do(http.MethodPost, "/v1/reservations/"+other.ID+"/payments", guest, "", approvedPayment)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_idempotency_key", decode[errorBody](t, rec).Error)

	first := s.do(http.MethodPost, path, guest, "k-1", approvedPayment)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Empty(t, first.Header().Get(handler.HeaderReplayed))

	again := s.do(http.MethodPost, path, guest, "k-1", approvedPayment)
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(handler.HeaderReplayed))
	assert.Equal(t, first.Body.String(), again.Body.String())

	changed := strings.Replace(approvedPayment, "gw-9", "gw-10", 1)
	rec = s.do(http.MethodPost, path, guest, "k-1", changed)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "idempotency_key_reused", decode[errorBody](t, rec).Error)

	// a new key reaches the engine, which refuses a second payment
	rec = s.do(http.MethodPost, path, guest, "k-2", approvedPayment)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "payment_not_expected", decode[errorBody](t, rec).Error)
}

func TestReservationHiddenFromOtherClients(t *testing.T) {
	s := newServer(t)
	res := s.book(t, token(t, "c1", model.RoleClient))

	rec := s.do(http.MethodGet, "/v1/reservations/"+res.ID, token(t, "c2", model.RoleClient), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "reservation_not_found", decode[errorBody](t, rec).Error)

	rec = s.do(http.MethodGet, "/v1/reservations/"+res.ID, token(t, "r1", model.RoleReceptionist), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelOverHTTP(t *testing.T) {
	s := newServer(t)
	guest := token(t, "c1", model.RoleClient)
	res := s.book(t, guest)
	base := "/v1/reservations/" + res.ID

	rec := s.do(http.MethodGet, base+"/cancellation", guest, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"booking_amount":"300"`)

	rec = s.do(http.MethodPost, base+"/transitions/cancel", guest, "", `{"reason":"plans changed","waive_penalty":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "waiver_requires_manager", decode[errorBody](t, rec).Error)

	rec = s.do(http.MethodPost, base+"/transitions/cancel", guest, "c-1", `{"reason":"plans changed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	canceled := decode[model.Reservation](t, rec)
	assert.Equal(t, model.StatusCanceled, canceled.Status)
	assert.Equal(t, "plans changed", canceled.CancelReason)

	// cancelling again is a no-op
	rec = s.do(http.MethodPost, base+"/transitions/cancel", guest, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, canceled.Version, decode[model.Reservation](t, rec).Version)

	rec = s.do(http.MethodPost, base+"/transitions/check-in", token(t, "r1", model.RoleReceptionist), "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorBody](t, rec).Error)

	rec = s.do(http.MethodPost, base+"/transitions/teleport", guest, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointsOverHTTP(t *testing.T) {
	s := newServer(t)
	guest := token(t, "c1", model.RoleClient)
	manager := token(t, "m1", model.RoleManager)
	s.book(t, guest)

	path := "/v1/clients/c1/points/adjustments"
	rec := s.do(http.MethodPost, path, guest, "", `{"delta":10,"reason":"MANUAL_ADJUSTMENT"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, path, manager, "adj-1", `{"delta":10,"reason":"MANUAL_ADJUSTMENT","note":"goodwill"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[model.LedgerEntry](t, rec)
	assert.Equal(t, int64(10), entry.BalanceAfter)

	// replay does not credit twice
	rec = s.do(http.MethodPost, path, manager, "adj-1", `{"delta":10,"reason":"MANUAL_ADJUSTMENT","note":"goodwill"}`)
	assert.Equal(t, "true", rec.Header().Get(handler.HeaderReplayed))

	rec = s.do(http.MethodPost, path, guest, "", `{"delta":-25,"reason":"REDEMPTION"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodGet, "/v1/clients/c1/points", guest, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(10), decode[model.PointsAccount](t, rec).Balance)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/clients/c1/points", token(t, "c2", model.RoleClient), "", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/clients/c1/points/ledger?limit=abc", guest, "", "").Code)
}
