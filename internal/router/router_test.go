package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/gateway"
	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
	"github.com/iliyamo/resort-reservation/internal/service"
	"github.com/iliyamo/resort-reservation/internal/utils"
)

const secret = "router-test-secret"

type apiClient struct {
	t      *testing.T
	e      *echo.Echo
	events *queue.Recorder
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	events := &queue.Recorder{}
	svc := service.New(repository.NewMemoryRepo(), gateway.NewLocal(), events, service.DefaultPolicy())
	h := handler.NewReservationHandler(svc)
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{}, nil)
	cache := middleware.NewCalendarCache(config.CacheConfig{}, nil)

	e := echo.New()
	RegisterRoutes(e)
	RegisterPublic(e, h, cache)
	RegisterCustomer(e, h, secret, limiter)
	RegisterAdmin(e, h, secret)
	return &apiClient{t: t, e: e, events: events}
}

func (a *apiClient) do(method, path, user, role, body string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		tok, err := utils.NewAccessToken(secret, user, user+"@example.com", role, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (a *apiClient) create(user, resource, start, end string) (*httptest.ResponseRecorder, map[string]any) {
	body := `{"resource_id":"` + resource + `","start_date":"` + start + `","end_date":"` + end + `","quoted_price_cents":2500000,"guest_count":2}`
	return a.do(http.MethodPost, "/v1/reservations", user, model.RoleUser, body)
}

func TestHealthz(t *testing.T) {
	api := newAPI(t)
	rec, body := api.do(http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)

	rec, body := api.create("guest-1", "villa-7", "2024-06-01", "2024-06-05")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := body["id"].(string)
	assert.Equal(t, "pending", body["booking_status"])
	assert.Equal(t, "unpaid", body["payment_status"])
	assert.Equal(t, "2024-06-01", body["interval"].(map[string]any)["start_date"])

	rec, body = api.create("guest-2", "villa-7", "2024-06-04", "2024-06-08")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["error"])

	rec, body = api.do(http.MethodGet, "/v1/resources/villa-7/availability?start=2024-06-05&end=2024-06-08", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["available"])

	rec, body = api.do(http.MethodGet, "/v1/resources/villa-7/calendar", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["booked"], 1)

	rec, body = api.do(http.MethodPatch, "/v1/reservations/"+id+"/payment", "guest-1", model.RoleUser, `{"success":true,"payment_id":"pay_1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "payment_not_allowed", body["error"])

	rec, _ = api.do(http.MethodPost, "/v1/admin/reservations/"+id+"/status", "guest-1", model.RoleUser, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "guests cannot reach admin routes")

	rec, body = api.do(http.MethodPost, "/v1/admin/reservations/"+id+"/status", "admin-1", model.RoleAdmin, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", body["booking_status"])

	rec, body = api.do(http.MethodPost, "/v1/admin/reservations/"+id+"/status", "admin-1", model.RoleAdmin, `{"status":"pending"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", body["error"])

	rec, body = api.do(http.MethodPost, "/v1/reservations/"+id+"/payment", "guest-1", model.RoleUser, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	orderID := body["order_id"].(string)
	assert.True(t, strings.HasPrefix(orderID, "ORDER_"))

	rec, body = api.do(http.MethodPatch, "/v1/reservations/"+id+"/payment", "guest-1", model.RoleUser,
		`{"success":true,"payment_id":"pay_1","transaction_id":"txn_1","payment_method":"upi","order_id":"`+orderID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paid", body["payment_status"])
	assert.Equal(t, "txn_1", body["transaction_id"])

	rec, _ = api.do(http.MethodPost, "/v1/reservations/"+id+"/cancel", "guest-1", model.RoleUser, `{"reason":"changed plans"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "paid reservations cannot be cancelled by default")

	rec, body = api.do(http.MethodPost, "/v1/admin/reservations/"+id+"/refund", "admin-1", model.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "refunded", body["payment_status"])

	types := make([]string, 0)
	for _, ev := range api.events.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		queue.EventCreated, queue.EventStatusChanged, queue.EventPaymentConfirmed, queue.EventPaymentRefunded,
	}, types)
}

func TestAuthRequired(t *testing.T) {
	api := newAPI(t)
	rec, _ := api.do(http.MethodPost, "/v1/reservations", "", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = api.do(http.MethodGet, "/v1/admin/reservations", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnershipAndListing(t *testing.T) {
	api := newAPI(t)
	rec, body := api.create("guest-1", "villa-1", "2024-06-01", "2024-06-03")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)
	rec, _ = api.create("guest-2", "villa-2", "2024-06-01", "2024-06-03")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = api.do(http.MethodGet, "/v1/reservations/"+id, "guest-2", model.RoleUser, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = api.do(http.MethodGet, "/v1/reservations/nope", "guest-2", model.RoleUser, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = api.do(http.MethodGet, "/v1/my-reservations", "guest-2", model.RoleUser, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)

	rec, body = api.do(http.MethodGet, "/v1/admin/reservations?limit=10", "admin-1", model.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, _ = api.do(http.MethodGet, "/v1/admin/reservations?booking_status=archived", "admin-1", model.RoleAdmin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = api.do(http.MethodGet, "/v1/admin/reservations?limit=-1", "admin-1", model.RoleAdmin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = api.do(http.MethodPost, "/v1/reservations/"+id+"/cancel", "guest-1", model.RoleUser, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", body["booking_status"])
}

func TestBatchStatusAndExpire(t *testing.T) {
	api := newAPI(t)
	var ids []string
	for _, r := range []string{"villa-1", "villa-2"} {
		rec, body := api.create("guest-1", r, "2024-06-01", "2024-06-03")
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, body["id"].(string))
	}

	rec, body := api.do(http.MethodPatch, "/v1/admin/reservations/status", "admin-1", model.RoleAdmin,
		`{"ids":["`+ids[0]+`","`+ids[1]+`","missing"],"status":"rejected"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, body["modified_count"])
	results := body["results"].([]any)
	require.Len(t, results, 3)
	assert.Equal(t, "not_found", results[2].(map[string]any)["error"])

	rec, _ = api.do(http.MethodPatch, "/v1/admin/reservations/status", "admin-1", model.RoleAdmin, `{"ids":[],"status":"rejected"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = api.do(http.MethodPost, "/v1/admin/reservations/expire", "admin-1", model.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["expired"])
}

func TestBadInput(t *testing.T) {
	api := newAPI(t)
	rec, body := api.create("guest-1", "villa-1", "2024-06-05", "2024-06-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["error"])

	rec, _ = api.create("guest-1", "villa-1", "June 1st", "2024-06-03")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodPost, "/v1/reservations", "guest-1", model.RoleUser, `{"resource_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodGet, "/v1/resources/villa-1/availability?start=2024-06-03&end=2024-06-03", "", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = api.do(http.MethodPatch, "/v1/reservations/x/payment", "guest-1", model.RoleUser, `{"payment_id":"p"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "success is required", body["message"])
}
