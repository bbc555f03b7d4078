package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/semah/internal/authorization"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/semah/internal/checkout/domain"
	"github.com/smallbiznis/semah/internal/config"
	fulfillmentdomain "github.com/smallbiznis/semah/internal/fulfillment/domain"
	"github.com/smallbiznis/semah/internal/identity"
	"github.com/smallbiznis/semah/internal/observability"
	paymentdomain "github.com/smallbiznis/semah/internal/payment/domain"
	"github.com/smallbiznis/semah/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) Initiate(ctx context.Context, req checkoutdomain.InitiateRequest) (checkoutdomain.InitiateResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(checkoutdomain.InitiateResult), args.Error(1)
}

func (m *mockCheckout) CompleteSession(ctx context.Context, sessionID string) (checkoutdomain.CompleteResult, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(checkoutdomain.CompleteResult), args.Error(1)
}

func (m *mockCheckout) HandleProcessorEvent(ctx context.Context, payload []byte, headers http.Header) (checkoutdomain.EventResult, error) {
	args := m.Called(ctx, payload, headers)
	return args.Get(0).(checkoutdomain.EventResult), args.Error(1)
}

func (m *mockCheckout) ViewURL(booking fulfillmentdomain.Booking) string {
	return m.Called(booking).String(0)
}

type testServer struct {
	engine   *gin.Engine
	checkout *mockCheckout
	verifier *identity.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewEnforcer(testutil.OpenDB(t))
	require.NoError(t, err)
	verifier := identity.NewVerifier(config.Config{AuthJWTSecret: "test-secret"})
	checkout := &mockCheckout{}

	srv := NewServer(ServerParams{
		Gin:         NewEngine(observability.Config{}, nil),
		Cfg:         config.Config{},
		Log:         zap.NewNop(),
		Verifier:    verifier,
		AuthzSvc:    authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		CheckoutSvc: checkout,
	})
	return &testServer{engine: srv.Engine(), checkout: checkout, verifier: verifier}
}

func (ts *testServer) token(t *testing.T, p identity.Principal) string {
	t.Helper()
	raw, err := ts.verifier.Issue(p, time.Hour)
	require.NoError(t, err)
	return "Bearer " + raw
}

func (ts *testServer) do(method, path string, body any, auth string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

var client = identity.Principal{ID: snowflake.ID(1001), Role: identity.RoleClient}

func TestPurchaseRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/checkout/purchase", gin.H{}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/checkout/purchase", gin.H{}, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ts.checkout.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
}

func TestPurchaseForbiddenForNonClients(t *testing.T) {
	ts := newTestServer(t)
	employee := identity.Principal{ID: snowflake.ID(2002), Role: identity.RoleEmployee}

	rec := ts.do(http.MethodPost, "/api/v1/checkout/purchase", gin.H{
		"offering_kind": "consultation",
		"offering_id":   "42",
	}, ts.token(t, employee))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	ts.checkout.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
}

func TestPurchasePaidRedirects(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.On("Initiate", mock.Anything, mock.MatchedBy(func(req checkoutdomain.InitiateRequest) bool {
		return req.ClientID == client.ID &&
			req.Kind == catalogdomain.KindConsultation &&
			req.OfferingID == snowflake.ID(42) &&
			req.Attributes.Date != nil &&
			req.Attributes.AppointmentType == "online"
	})).Return(checkoutdomain.InitiateResult{
		State:       checkoutdomain.StateAwaitingPayment,
		RedirectURL: "https://pay.example.com/cs_1",
		IntentRef:   "01HZ",
	}, nil)

	rec := ts.do(http.MethodPost, "/api/v1/checkout/purchase", gin.H{
		"offering_kind": "consultation",
		"offering_id":   "42",
		"attributes":    gin.H{"date": "2026-03-12T10:00:00Z", "appointment_type": "online"},
	}, ts.token(t, client))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data checkoutdomain.InitiateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, checkoutdomain.StateAwaitingPayment, resp.Data.State)
	assert.Equal(t, "https://pay.example.com/cs_1", resp.Data.RedirectURL)
	ts.checkout.AssertExpectations(t)
}

func TestPurchaseFreeReturnsCreated(t *testing.T) {
	ts := newTestServer(t)
	booking := fulfillmentdomain.Booking{ID: snowflake.ID(7), Subject: fulfillmentdomain.SubjectFree}
	ts.checkout.On("Initiate", mock.Anything, mock.Anything).Return(checkoutdomain.InitiateResult{
		State:   checkoutdomain.StateFreeFulfilled,
		Booking: &booking,
	}, nil)

	rec := ts.do(http.MethodPost, "/api/v1/checkout/purchase", gin.H{
		"offering_kind": "consultation",
		"offering_id":   "42",
	}, ts.token(t, client))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"FREE_FULFILLED"`)
	assert.Contains(t, rec.Body.String(), `"id":"7"`)
}

func TestPurchaseValidation(t *testing.T) {
	ts := newTestServer(t)
	auth := ts.token(t, client)

	cases := []struct {
		name  string
		body  gin.H
		field string
		code  string
	}{
		{name: "missing kind", body: gin.H{"offering_id": "42"}, field: "offering_kind", code: "required"},
		{name: "missing id", body: gin.H{"offering_kind": "consultation"}, field: "offering_id", code: "required"},
		{name: "kind", body: gin.H{"offering_kind": "course", "offering_id": "42"}, field: "offering_kind", code: "invalid_offering_kind"},
		{name: "id", body: gin.H{"offering_kind": "consultation", "offering_id": "abc"}, field: "offering_id", code: "invalid_offering_id"},
		{name: "date", body: gin.H{"offering_kind": "consultation", "offering_id": "42", "attributes": gin.H{"date": "tomorrow"}}, field: "date", code: "invalid_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/v1/checkout/purchase", tc.body, auth)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			payload := decodeError(t, rec)
			assert.Equal(t, "validation_error", payload.Type)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, tc.field, payload.Errors[0].Field)
			assert.Equal(t, tc.code, payload.Errors[0].Code)
		})
	}
}

func TestPurchaseErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unfulfillable", err: fulfillmentdomain.ErrUnfulfillable, status: http.StatusUnprocessableEntity},
		{name: "not found", err: catalogdomain.ErrNotFound, status: http.StatusNotFound},
		{name: "unknown client", err: fulfillmentdomain.ErrInvalidClient, status: http.StatusNotFound},
		{name: "timeout", err: paymentdomain.ErrGatewayTimeout, status: http.StatusGatewayTimeout},
		{name: "rate limited", err: checkoutdomain.ErrRateLimited, status: http.StatusTooManyRequests},
		{name: "fulfillment failed", err: fulfillmentdomain.ErrFulfillmentFailed, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.checkout.On("Initiate", mock.Anything, mock.Anything).Return(checkoutdomain.InitiateResult{}, tc.err)

			rec := ts.do(http.MethodPost, "/api/v1/checkout/purchase", gin.H{
				"offering_kind": "consultation",
				"offering_id":   "42",
			}, ts.token(t, client))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestCompleteCheckout(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.On("CompleteSession", mock.Anything, "cs_1").Return(checkoutdomain.CompleteResult{
		State:    checkoutdomain.StatePaidFulfilled,
		Booking:  fulfillmentdomain.Booking{ID: snowflake.ID(9)},
		Replayed: true,
	}, nil)

	rec := ts.do(http.MethodPost, "/api/v1/checkout/complete", gin.H{"session_id": "cs_1"}, ts.token(t, client))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"replayed":true`)

	rec = ts.do(http.MethodPost, "/api/v1/checkout/complete", gin.H{"session_id": " "}, ts.token(t, client))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteCheckoutCarriesPrincipal(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.On("CompleteSession", mock.MatchedBy(func(ctx context.Context) bool {
		p, ok := identity.FromContext(ctx)
		return ok && p.ID == client.ID
	}), "cs_2").Return(checkoutdomain.CompleteResult{}, checkoutdomain.ErrSessionOwnership)

	rec := ts.do(http.MethodPost, "/api/v1/checkout/complete", gin.H{"session_id": "cs_2"}, ts.token(t, client))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	ts.checkout.AssertExpectations(t)
}

func TestCheckoutSuccessRedirects(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.On("CompleteSession", mock.Anything, "cs_ok").Return(checkoutdomain.CompleteResult{
		State:   checkoutdomain.StatePaidFulfilled,
		Booking: fulfillmentdomain.Booking{ID: snowflake.ID(9)},
		ViewURL: "https://app.example.com/myDates/9",
	}, nil)
	ts.checkout.On("CompleteSession", mock.Anything, "cs_json").Return(checkoutdomain.CompleteResult{
		State:   checkoutdomain.StatePaidFulfilled,
		Booking: fulfillmentdomain.Booking{ID: snowflake.ID(10)},
	}, nil)
	ts.checkout.On("CompleteSession", mock.Anything, "cs_unpaid").Return(checkoutdomain.CompleteResult{}, checkoutdomain.ErrSessionNotPaid)

	rec := ts.do(http.MethodGet, "/api/v1/checkout/success?session_id=cs_ok", nil, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://app.example.com/myDates/9", rec.Header().Get("Location"))

	rec = ts.do(http.MethodGet, "/api/v1/checkout/success?session_id=cs_json", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"10"`)

	rec = ts.do(http.MethodGet, "/api/v1/checkout/success?session_id=cs_unpaid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "session_not_paid", decodeError(t, rec).Type)

	rec = ts.do(http.MethodGet, "/api/v1/checkout/success", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/checkout/success?session_id=cs_ok", nil, "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.On("HandleProcessorEvent", mock.Anything, []byte(`{"id":"evt_1"}`), mock.Anything).Return(checkoutdomain.EventResult{
		Status: checkoutdomain.EventCompleted,
		Result: checkoutdomain.CompleteResult{Booking: fulfillmentdomain.Booking{ID: snowflake.ID(11)}},
	}, nil).Once()
	ts.checkout.On("HandleProcessorEvent", mock.Anything, []byte(`{"id":"evt_2"}`), mock.Anything).Return(checkoutdomain.EventResult{Status: checkoutdomain.EventIgnored}, nil).Once()
	ts.checkout.On("HandleProcessorEvent", mock.Anything, []byte(`{"id":"evt_3"}`), mock.Anything).Return(checkoutdomain.EventResult{}, paymentdomain.ErrInvalidSignature).Once()
	ts.checkout.On("HandleProcessorEvent", mock.Anything, []byte(`{"id":"evt_4"}`), mock.Anything).Return(checkoutdomain.EventResult{
		Status: checkoutdomain.EventRejected,
		Reason: "invalid_client",
	}, nil).Once()
	ts.checkout.On("HandleProcessorEvent", mock.Anything, []byte(`{"id":"evt_5"}`), mock.Anything).Return(checkoutdomain.EventResult{}, paymentdomain.ErrGatewayTimeout).Once()
	ts.checkout.On("HandleProcessorEvent", mock.Anything, []byte(`{"id":"evt_6"}`), mock.Anything).Return(checkoutdomain.EventResult{}, fulfillmentdomain.ErrFulfillmentFailed).Once()

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"id":"evt_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"booking_id":"11"`)

	rec = send(`{"id":"evt_2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ignored"`)

	rec = send(`{"id":"evt_3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Terminal rejections are acknowledged; only retryable failures are 5xx.
	rec = send(`{"id":"evt_4"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"rejected","reason":"invalid_client"}`, rec.Body.String())

	rec = send(`{"id":"evt_5"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = send(`{"id":"evt_6"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ts.checkout.AssertExpectations(t)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(checkoutdomain.ErrInvalidRequest)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_request", code)

	errType, code = classifyErrorForLog(fulfillmentdomain.ErrUnfulfillable)
	assert.Equal(t, "unfulfillable", errType)
	assert.Equal(t, "unfulfillable", code)
}
