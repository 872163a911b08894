package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-order-core/internal/auth"
	"github.com/example/ec-order-core/internal/command"
	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/chapa"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
	"github.com/example/ec-order-core/internal/query"
)

const testSecret = "test-secret-key-for-testing-purposes"

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initialize(ctx context.Context, req chapa.InitializeRequest) (*chapa.InitializeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chapa.InitializeResult), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, txRef string) (*chapa.Verification, error) {
	args := m.Called(ctx, txRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chapa.Verification), args.Error(1)
}

type noopEmitter struct{}

func (noopEmitter) Emit(ctx context.Context, orderID, eventType string, payload any) {}

type testServer struct {
	router     http.Handler
	orders     *store.MemoryOrderStore
	gateway    *MockGateway
	dispatcher *CallbackDispatcher
	jwt        *auth.JWTService
}

func newTestServer(t *testing.T, webhookSecret string) *testServer {
	t.Helper()
	log := logger.Nop()
	orders := store.NewMemoryOrderStore()
	gw := new(MockGateway)

	orderSvc := order.NewService(orders, log)
	paymentSvc := payment.NewService(orders, gw, noopEmitter{}, payment.Config{Currency: "ETB"}, log)
	notificationSvc := notification.NewService(store.NewMemoryNotificationStore())

	cmdHandler := command.NewHandler(orderSvc, paymentSvc, notificationSvc, events.NewBus(events.NewNoopPublisher(), time.Second, log), log)
	queryHandler := query.NewHandler(orderSvc, notificationSvc)
	dispatcher := NewCallbackDispatcher(cmdHandler.HandlePaymentCallback, 5*time.Second, log)
	jwtService := auth.NewJWTService(testSecret, time.Hour)

	router := NewRouter(RouterConfig{
		Handlers:       NewHandlers(cmdHandler, queryHandler, dispatcher, webhookSecret, log),
		JWTService:     jwtService,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         log,
	})
	return &testServer{router: router, orders: orders, gateway: gw, dispatcher: dispatcher, jwt: jwtService}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, _, err := s.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seed(t *testing.T, id, userID string, status model.Status, method model.PaymentMethod) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.orders.Create(context.Background(), &model.Order{
		ID:             id,
		UserID:         userID,
		Customer:       model.Customer{ID: userID, Name: "Abebe Bikila"},
		Items:          []model.OrderItem{{ProductID: "p-1", Name: "Kemis", Size: model.SizeM, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		PaymentMethod:  method,
		PaymentDetails: model.PaymentDetails{Status: model.PaymentPending},
		Status:         status,
		Subtotal:       decimal.NewFromInt(100),
		Total:          decimal.NewFromInt(100),
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

func (s *testServer) get(t *testing.T, id string) *model.Order {
	t.Helper()
	o, err := s.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func placeOrderBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "p-1", "name": "Habesha Kemis", "size": "M", "quantity": 2, "price": "50.00"},
		},
		"deliveryInfo": map[string]any{
			"firstName": "Abebe", "lastName": "Bikila", "email": "abebe@example.com",
			"phone": "+251911000000", "street": "Bole Road", "city": "Addis Ababa",
			"zipCode": "1000", "country": "Ethiopia",
		},
		"paymentMethod": "cash_on_delivery",
		"deliveryFee":   "10",
	}
}

// ============================================
// Order Endpoint Tests
// ============================================

func TestRouter_PlaceOrder_Created(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/orders", s.token(t, "user-1", model.RoleUser), placeOrderBody())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, "110.00", o.Total.StringFixed(2))
	assert.Equal(t, "user-1", o.UserID)
}

func TestRouter_PlaceOrder_MissingDeliveryFields(t *testing.T) {
	s := newTestServer(t, "")
	body := placeOrderBody()
	delivery := body["deliveryInfo"].(map[string]any)
	delete(delivery, "phone")
	delete(delivery, "city")

	rec := s.do(t, http.MethodPost, "/orders", s.token(t, "user-1", model.RoleUser), body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "missing required delivery fields", e.Error)
	assert.Equal(t, []string{"phone", "city"}, e.Details)
}

func TestRouter_RequiresAuth(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/orders/user", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_GetMyOrders(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentCashOnDelivery)
	s.seed(t, "order-2", "user-2", model.StatusPending, model.PaymentCashOnDelivery)

	rec := s.do(t, http.MethodGet, "/orders/user", s.token(t, "user-1", model.RoleUser), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var orders []model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)
}

func TestRouter_GetOrder_Access(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentCashOnDelivery)

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{"owner", s.token(t, "user-1", model.RoleUser), "/orders/order-1", http.StatusOK},
		{"admin", s.token(t, "admin-1", model.RoleAdmin), "/orders/order-1", http.StatusOK},
		{"stranger", s.token(t, "user-2", model.RoleUser), "/orders/order-1", http.StatusForbidden},
		{"missing", s.token(t, "user-1", model.RoleUser), "/orders/nope", http.StatusNotFound},
		{"tracking", s.token(t, "user-1", model.RoleUser), "/orders/order-1/tracking", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_GetAllOrders_AdminOnly(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentCashOnDelivery)

	rec := s.do(t, http.MethodGet, "/orders", s.token(t, "user-1", model.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders", s.token(t, "admin-1", model.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user":{"id":"user-1"`)
}

func TestRouter_UpdateStatus(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusProcessing, model.PaymentCashOnDelivery)
	admin := s.token(t, "admin-1", model.RoleAdmin)

	rec := s.do(t, http.MethodPut, "/orders/status/order-1", admin, map[string]string{"status": "shipped", "carrier": "EMS"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := s.get(t, "order-1")
	assert.Equal(t, model.StatusShipped, o.Status)
	assert.Equal(t, "EMS", o.Tracking.Carrier)
	assert.Equal(t, order.DefaultTrackingNumber, o.Tracking.TrackingNumber)
}

func TestRouter_UpdateStatus_InvalidTransition(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentCashOnDelivery)

	rec := s.do(t, http.MethodPut, "/orders/status/order-1", s.token(t, "admin-1", model.RoleAdmin), map[string]string{"status": "shipped"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Contains(t, e.Error, "cannot transition from pending to shipped")
	assert.Equal(t, []string{"processing", "cancelled"}, e.Details)
}

func TestRouter_UpdateStatus_Validation(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentCashOnDelivery)
	admin := s.token(t, "admin-1", model.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/orders/status/order-1", admin, map[string]string{}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/orders/status/order-1", admin, map[string]string{"status": "teleported"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/orders/status/order-1", admin, "{not json").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/orders/status/nope", admin, map[string]string{"status": "cancelled"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, "/orders/status/order-1", s.token(t, "user-1", model.RoleUser), map[string]string{"status": "cancelled"}).Code)
}

// ============================================
// Confirm Received Endpoint Tests
// ============================================

func TestRouter_ConfirmReceived(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusDelivered, model.PaymentCashOnDelivery)
	user := s.token(t, "user-1", model.RoleUser)
	body := map[string]any{"note": "thanks", "allItemsReceived": true, "itemsInGoodCondition": true}

	rec := s.do(t, http.MethodPut, "/orders/confirm-received/order-1", user, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusReceived, s.get(t, "order-1").Status)

	rec = s.do(t, http.MethodPut, "/orders/confirm-received/order-1", user, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, order.ErrAlreadyConfirmed.Error(), decodeError(t, rec).Error)

	admin := s.token(t, "admin-1", model.RoleAdmin)
	rec = s.do(t, http.MethodGet, "/notifications/unread-count", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestRouter_ConfirmReceived_StringBoolean(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusDelivered, model.PaymentCashOnDelivery)

	rec := s.do(t, http.MethodPut, "/orders/confirm-received/order-1", s.token(t, "user-1", model.RoleUser),
		`{"allItemsReceived": "true", "itemsInGoodCondition": true}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, []string{"allItemsReceived"}, e.Details)
	assert.Equal(t, model.StatusDelivered, s.get(t, "order-1").Status)
}

func TestRouter_ConfirmReceived_Rejections(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusShipped, model.PaymentCashOnDelivery)
	body := map[string]any{"allItemsReceived": true, "itemsInGoodCondition": true}

	rec := s.do(t, http.MethodPut, "/orders/confirm-received/order-1", s.token(t, "user-2", model.RoleUser), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/orders/confirm-received/order-1", s.token(t, "user-1", model.RoleUser), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/orders/confirm-received/order-1", s.token(t, "user-1", model.RoleUser), map[string]any{"allItemsReceived": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"itemsInGoodCondition"}, decodeError(t, rec).Details)
}

// ============================================
// Payment Endpoint Tests
// ============================================

func TestRouter_InitiatePayment(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Initialize", mock.Anything, mock.Anything).
		Return(&chapa.InitializeResult{CheckoutURL: "https://checkout.example/order-1"}, nil).Once()

	rec := s.do(t, http.MethodPost, "/payment/initiate", s.token(t, "user-1", model.RoleUser), map[string]string{"orderId": "order-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"checkoutUrl":"https://checkout.example/order-1"}`, rec.Body.String())
	assert.Equal(t, model.PaymentInitiated, s.get(t, "order-1").PaymentDetails.Status)

	rec = s.do(t, http.MethodPost, "/payment/initiate", s.token(t, "user-1", model.RoleUser), map[string]string{"orderId": "order-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_InitiatePayment_GatewayDown(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Initialize", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	rec := s.do(t, http.MethodPost, "/payment/initiate", s.token(t, "user-1", model.RoleUser), map[string]string{"orderId": "order-1"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Equal(t, model.PaymentFailed, s.get(t, "order-1").PaymentDetails.Status)
}

func TestRouter_InitiatePayment_NotPayable(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentCashOnDelivery)

	rec := s.do(t, http.MethodPost, "/payment/initiate", s.token(t, "user-1", model.RoleUser), map[string]string{"orderId": "order-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.gateway.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything)
}

func verifiedSuccess(ref string) *chapa.Verification {
	return &chapa.Verification{TxRef: ref, Status: chapa.StatusSuccess, Amount: decimal.NewFromInt(100), Currency: "ETB"}
}

func TestRouter_PaymentCallback_Get(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Verify", mock.Anything, "order-1").Return(verifiedSuccess("order-1"), nil)

	rec := s.do(t, http.MethodGet, "/payment/callback?trx_ref=order-1&status=success", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, s.dispatcher.Wait(context.Background()))
	o := s.get(t, "order-1")
	assert.Equal(t, model.PaymentVerified, o.PaymentDetails.Status)
	assert.Equal(t, model.StatusProcessing, o.Status)
}

func TestRouter_PaymentCallback_PostReplays(t *testing.T) {
	s := newTestServer(t, "")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Verify", mock.Anything, "order-1").Return(verifiedSuccess("order-1"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(`{"tx_ref":"order-1","status":"success"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
	require.NoError(t, s.dispatcher.Wait(context.Background()))

	o := s.get(t, "order-1")
	assert.Equal(t, model.PaymentVerified, o.PaymentDetails.Status)
	assert.Equal(t, model.StatusProcessing, o.Status)
	s.gateway.AssertNumberOfCalls(t, "Verify", 1)
}

func TestRouter_PaymentCallback_AlwaysOK(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"no reference", http.MethodGet, "/payment/callback?status=success", ""},
		{"unknown order", http.MethodGet, "/payment/callback?trx_ref=nope&status=success", ""},
		{"garbage body", http.MethodPost, "/payment/callback", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
	require.NoError(t, s.dispatcher.Wait(context.Background()))
}

func TestRouter_PaymentCallback_Signature(t *testing.T) {
	const secret = "webhook-secret"
	s := newTestServer(t, secret)
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Verify", mock.Anything, "order-1").Return(verifiedSuccess("order-1"), nil)
	body := `{"tx_ref":"order-1","status":"success"}`

	forged := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(body))
	forged.Header.Set("Chapa-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, forged)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PaymentPending, s.get(t, "order-1").PaymentDetails.Status)

	signed := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(body))
	signed.Header.Set("x-chapa-signature", chapa.Sign(secret, []byte(body)))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, signed)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, s.dispatcher.Wait(context.Background()))
	assert.Equal(t, model.PaymentVerified, s.get(t, "order-1").PaymentDetails.Status)
}

func TestRouter_PaymentCallback_UnsignedFailureNeedsGateway(t *testing.T) {
	s := newTestServer(t, "webhook-secret")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Verify", mock.Anything, "order-1").
		Return(&chapa.Verification{TxRef: "order-1", Status: "pending", Amount: decimal.NewFromInt(100), Currency: "ETB"}, nil)

	rec := s.do(t, http.MethodGet, "/payment/callback?trx_ref=order-1&status=failed", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, s.dispatcher.Wait(context.Background()))
	o := s.get(t, "order-1")
	assert.Equal(t, model.PaymentPending, o.PaymentDetails.Status)
	assert.Equal(t, model.StatusPending, o.Status)
	s.gateway.AssertCalled(t, "Verify", mock.Anything, "order-1")
}

func TestRouter_PaymentCallback_FailureConfirmedByGateway(t *testing.T) {
	s := newTestServer(t, "webhook-secret")
	s.seed(t, "order-1", "user-1", model.StatusPending, model.PaymentOnline)
	s.gateway.On("Verify", mock.Anything, "order-1").
		Return(&chapa.Verification{TxRef: "order-1", Status: chapa.StatusFailed, Amount: decimal.NewFromInt(100), Currency: "ETB"}, nil)

	rec := s.do(t, http.MethodGet, "/payment/callback?trx_ref=order-1&status=failed", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, s.dispatcher.Wait(context.Background()))
	assert.Equal(t, model.PaymentFailed, s.get(t, "order-1").PaymentDetails.Status)
}

// ============================================
// Misc Tests
// ============================================

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Notifications_AdminOnly(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/notifications", s.token(t, "user-1", model.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/notifications?unread=true", s.token(t, "admin-1", model.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[],"unreadCount":0}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/notifications/nope/read", s.token(t, "admin-1", model.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackDispatcher_RejectsAfterWait(t *testing.T) {
	called := false
	d := NewCallbackDispatcher(func(ctx context.Context, cmd command.PaymentCallback) (*payment.CallbackResult, error) {
		called = true
		return &payment.CallbackResult{}, nil
	}, time.Second, logger.Nop())

	require.NoError(t, d.Wait(context.Background()))

	assert.False(t, d.Dispatch(command.PaymentCallback{TxRef: "order-1"}))
	assert.False(t, called)
}
