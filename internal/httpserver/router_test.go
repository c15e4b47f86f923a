package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
	"milaf-storefront/internal/identity"
	"milaf-storefront/internal/parcel"
	"milaf-storefront/internal/postcode"
	"milaf-storefront/internal/service/anonymous"
	cartsvc "milaf-storefront/internal/service/cart"
	"milaf-storefront/internal/service/checkout"
)

const testIdentitySecret = "identity-secret"

type stubParcel struct {
	raw   json.RawMessage
	err   error
	query parcel.Query
}

func (s *stubParcel) Services(_ context.Context, q parcel.Query) ([]parcel.Service, json.RawMessage, error) {
	s.query = q
	return nil, s.raw, s.err
}

func (s *stubParcel) Calculate(_ context.Context, q parcel.Query) (*parcel.Calculation, json.RawMessage, error) {
	s.query = q
	return &parcel.Calculation{}, s.raw, s.err
}

type stubCheckout struct {
	req        checkout.CheckoutRequest
	handle     *domain.PaymentOrderHandle
	order      *domain.Order
	createErr  error
	verifyErr  error
	webhookErr error
	webhookSig string
}

func (s *stubCheckout) CreatePaymentOrder(_ context.Context, req checkout.CheckoutRequest) (*domain.PaymentOrderHandle, error) {
	s.req = req
	return s.handle, s.createErr
}

func (s *stubCheckout) VerifyPayment(_ context.Context, userID, orderID, _, _ string) (*domain.Order, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.order, nil
}

func (s *stubCheckout) HandleWebhook(_ context.Context, _ []byte, sig string) error {
	s.webhookSig = sig
	return s.webhookErr
}

type stubCatalog struct {
	prices map[string]int64
}

func (s *stubCatalog) List(context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for name, p := range s.prices {
		out = append(out, domain.Product{Name: name, PriceCents: p})
	}
	return out, nil
}

func (s *stubCatalog) Get(_ context.Context, name string) (*domain.Product, error) {
	p, ok := s.prices[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Product{Name: name, PriceCents: p}, nil
}

func (s *stubCatalog) UnitPrice(_ context.Context, name string, _ domain.UnitKind) (int64, error) {
	p, ok := s.prices[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p, nil
}

type addCall struct {
	userID, name string
	quantity     int
	kind         domain.UnitKind
	price        int64
}

type stubCarts struct {
	adds    []addCall
	cleared []string
	merged  string
}

func (s *stubCarts) AddItem(_ context.Context, userID, name string, quantity int, kind domain.UnitKind, price int64) (*domain.CartSummary, error) {
	s.adds = append(s.adds, addCall{userID, name, quantity, kind, price})
	return &domain.CartSummary{UserID: userID, TotalItems: quantity, TotalPriceCents: price * int64(quantity), Version: 1}, nil
}

func (s *stubCarts) RemoveItem(_ context.Context, userID, _ string, _ domain.UnitKind) (*domain.CartSummary, error) {
	return &domain.CartSummary{UserID: userID}, nil
}

func (s *stubCarts) UpdateQuantity(_ context.Context, userID, _ string, _ domain.UnitKind, q int) (*domain.CartSummary, error) {
	return &domain.CartSummary{UserID: userID, TotalItems: q}, nil
}

func (s *stubCarts) ListItemsWithCatalogDetails(context.Context, string) ([]domain.CartLineDetail, error) {
	return nil, nil
}

func (s *stubCarts) Clear(_ context.Context, userID string) (*domain.CartSummary, error) {
	s.cleared = append(s.cleared, userID)
	return &domain.CartSummary{UserID: userID}, nil
}

func (s *stubCarts) Summary(_ context.Context, userID string) (*domain.CartSummary, error) {
	return &domain.CartSummary{UserID: userID}, nil
}

func (s *stubCarts) MergeAnonymousCart(_ context.Context, _, guestID string) (cartsvc.MergeResult, error) {
	s.merged = guestID
	return cartsvc.MergeResult{Merged: 1}, nil
}

type stubGuestCarts struct {
	items map[string][]domain.AnonymousCartItem
}

func (s *stubGuestCarts) Add(_ context.Context, guestID string, item domain.AnonymousCartItem) (*domain.AnonymousCartItem, error) {
	if s.items == nil {
		s.items = map[string][]domain.AnonymousCartItem{}
	}
	item.ID = "item-1"
	s.items[guestID] = append(s.items[guestID], item)
	return &item, nil
}

func (s *stubGuestCarts) List(_ context.Context, guestID string) ([]domain.AnonymousCartItem, error) {
	return s.items[guestID], nil
}

func (s *stubGuestCarts) Remove(_ context.Context, guestID string, ids ...string) error {
	if len(s.items[guestID]) == 0 {
		return domain.ErrNotFound
	}
	s.items[guestID] = nil
	return nil
}

type stubOrders struct {
	orders []domain.Order
	err    error
}

func (s *stubOrders) ListForUser(context.Context, string) ([]domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, tracking string) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Order{ID: id, Status: status, TrackingNumber: tracking}, nil
}

type fixture struct {
	parcel   *stubParcel
	checkout *stubCheckout
	carts    *stubCarts
	guests   *anonymous.Service
	guestDB  *stubGuestCarts
	orders   *stubOrders
	router   *gin.Engine
}

func newFixture(t *testing.T, tweak func(*Deps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	table, err := postcode.Default()
	if err != nil {
		t.Fatalf("postcode table: %v", err)
	}
	f := &fixture{
		parcel:   &stubParcel{raw: json.RawMessage(`{"services":{"service":[]}}`)},
		checkout: &stubCheckout{},
		carts:    &stubCarts{},
		guests:   anonymous.New("guest-secret", time.Hour),
		guestDB:  &stubGuestCarts{},
		orders:   &stubOrders{},
	}
	deps := Deps{
		Parcel:       f.parcel,
		Checkout:     f.checkout,
		Catalog:      &stubCatalog{prices: map[string]int64{"Milaf Cola": 499}},
		Carts:        f.carts,
		Guests:       f.guests,
		GuestCarts:   f.guestDB,
		Orders:       f.orders,
		Identity:     identity.NewVerifier(testIdentitySecret),
		Postcodes:    table,
		PaymentKeyID: "rzp_test_key",
		AdminAPIKey:  "admin-key",
		RateLimitRPS: 100,
		RateBurst:    100,
	}
	if tweak != nil {
		tweak(&deps)
	}
	router, err := buildRouter(zap.NewNop(), nil, deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := identity.Issue(testIdentitySecret, identity.Principal{UserID: userID}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestBuildRouter_MissingDeps(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), nil, Deps{}); err == nil {
		t.Fatalf("expected error for empty deps")
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without db, got %d", rec.Code)
	}
}

func TestParcelServices_RequiresPostcode(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/parcel/services", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Field; got != "to_postcode" {
		t.Fatalf("expected field to_postcode, got %q", got)
	}
}

func TestParcelServices_PassesThroughBody(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/parcel/services?to_postcode=3000&weight=1.5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"services":{"service":[]}}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if f.parcel.query.ToPostcode != "3000" || f.parcel.query.Profile.WeightKG != 1.5 {
		t.Fatalf("unexpected query %+v", f.parcel.query)
	}
}

func TestParcelCalc_RequiresServiceCode(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/parcel/calc?to_postcode=3000", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Field; got != "service_code" {
		t.Fatalf("expected field service_code, got %q", got)
	}
}

func TestParcelCalc_UpstreamErrorHidesBody(t *testing.T) {
	f := newFixture(t, nil)
	f.parcel.err = &domain.UpstreamError{
		Service: "parcel",
		Status:  http.StatusOK,
		Message: "unexpected content type text/html",
		Snippet: "<html>gateway timeout</html>",
		Kind:    domain.ErrUpstreamMalformed,
	}
	rec := f.do(t, http.MethodGet, "/api/parcel/calc?to_postcode=3000&service_code=AUS_PARCEL_REGULAR", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<html>") {
		t.Fatalf("upstream body leaked: %s", rec.Body.String())
	}
	if got := decodeError(t, rec).Code; got != "upstream_malformed" {
		t.Fatalf("expected upstream_malformed, got %q", got)
	}
}

func TestPaymentKey_ReturnsPublicKeyOnly(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/payment/key", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body["key"] != "rzp_test_key" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/payment/create-order", `{"zipcode":"2000"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestCreateOrder_IgnoresClientPrices(t *testing.T) {
	f := newFixture(t, nil)
	f.checkout.handle = &domain.PaymentOrderHandle{OrderID: "order_1", Amount: 1597, Currency: "AUD"}
	body := `{"cartItems":[{"name":"Milaf Cola","quantity":2,"price":0.01}],"zipcode":"2000","paymentMethod":"card"}`
	rec := f.do(t, http.MethodPost, "/api/payment/create-order", body, bearer(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OrderID != "order_1" || resp.Amount != 1597 || resp.Currency != "AUD" {
		t.Fatalf("unexpected response %+v", resp)
	}
	req := f.checkout.req
	if req.UserID != "user-1" || req.Postcode != "2000" || len(req.Items) != 1 || req.Items[0].Quantity != 2 {
		t.Fatalf("unexpected checkout request %+v", req)
	}
}

func TestCreateOrder_ValidationError(t *testing.T) {
	f := newFixture(t, nil)
	f.checkout.createErr = domain.Invalid("zipcode", "a 4 digit postcode is required")
	rec := f.do(t, http.MethodPost, "/api/payment/create-order", `{"zipcode":"20"}`, bearer(t, "user-1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestVerifyPayment_SignatureMismatch(t *testing.T) {
	f := newFixture(t, nil)
	f.checkout.verifyErr = domain.ErrSignatureMismatch
	body := `{"orderId":"order_1","paymentId":"pay_1","signature":"bad"}`
	rec := f.do(t, http.MethodPost, "/api/payment/verify", body, bearer(t, "user-1"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if len(f.carts.cleared) != 0 {
		t.Fatalf("cart must not be cleared on mismatch")
	}
}

func TestVerifyPayment_SuccessLeavesCartToCheckout(t *testing.T) {
	f := newFixture(t, nil)
	f.checkout.order = &domain.Order{ID: "ord-uuid"}
	body := `{"orderId":"order_1","paymentId":"pay_1","signature":"good"}`
	rec := f.do(t, http.MethodPost, "/api/payment/verify", body, bearer(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" || resp["orderId"] != "ord-uuid" {
		t.Fatalf("unexpected response %v", resp)
	}
	if len(f.carts.cleared) != 0 {
		t.Fatalf("verify must not clear the whole cart, got %v", f.carts.cleared)
	}
}

func TestWebhook(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/payment/webhook", `{"event":"payment.captured"}`, map[string]string{"x-razorpay-signature": "sig"})
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}
	if f.checkout.webhookSig != "sig" {
		t.Fatalf("signature header not passed, got %q", f.checkout.webhookSig)
	}

	f.checkout.webhookErr = domain.ErrSignatureMismatch
	rec = f.do(t, http.MethodPost, "/api/payment/webhook", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPaymentRateLimit(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.RateLimitRPS = 0.001
		d.RateBurst = 1
	})
	if rec := f.do(t, http.MethodGet, "/api/payment/key", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/payment/key", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	// other routes are not limited
	if rec := f.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz allowed, got %d", rec.Code)
	}
	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/api/payment/webhook", `{"event":"payment.captured"}`, map[string]string{"x-razorpay-signature": "sig"})
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook delivery %d must not be limited, got %d", i, rec.Code)
		}
	}
}

func TestAddGuestItem_RejectsHugeQuantity(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/guest/session", "", nil)
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	guest := map[string]string{anonymousTokenHeader: session.Token}
	rec = f.do(t, http.MethodPost, "/api/guest/cart/items", `{"name":"Milaf Cola","quantity":1001}`, guest)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddCartItem_UsesCatalogPrice(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"name":"Milaf Cola","quantity":3,"unitKind":"piece","priceCents":1}`
	rec := f.do(t, http.MethodPost, "/api/cart/items", body, bearer(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.carts.adds) != 1 {
		t.Fatalf("expected one add, got %d", len(f.carts.adds))
	}
	if got := f.carts.adds[0]; got.price != 499 || got.quantity != 3 || got.userID != "user-1" {
		t.Fatalf("unexpected add %+v", got)
	}
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/cart/items", `{"name":"Nope","quantity":1}`, bearer(t, "user-1"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestRemoveCartItem_BadUnitKind(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodDelete, "/api/cart/items/Milaf%20Cola?unitKind=pallet", "", bearer(t, "user-1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestGuestCartFlow(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/guest/session", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	var session struct {
		Token   string `json:"token"`
		GuestID string `json:"guestId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	guest := map[string]string{anonymousTokenHeader: session.Token}

	rec = f.do(t, http.MethodPost, "/api/guest/cart/items", `{"name":"Milaf Cola","quantity":2}`, guest)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	stored := f.guestDB.items[session.GuestID]
	if len(stored) != 1 || stored[0].PriceCents != 499 || stored[0].UnitKind != domain.UnitPiece {
		t.Fatalf("unexpected guest items %+v", stored)
	}

	rec = f.do(t, http.MethodGet, "/api/guest/cart", "", guest)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var view struct {
		TotalItems      int   `json:"totalItems"`
		TotalPriceCents int64 `json:"totalPriceCents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TotalItems != 2 || view.TotalPriceCents != 998 {
		t.Fatalf("unexpected guest cart view %+v", view)
	}

	rec = f.do(t, http.MethodDelete, "/api/guest/cart/items/item-1", "", guest)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/api/guest/cart/items/item-1", "", guest)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestGuestCart_RejectsBadToken(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/guest/cart", "", map[string]string{anonymousTokenHeader: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestMergeGuestCart(t *testing.T) {
	f := newFixture(t, nil)
	token, guestID, err := f.guests.Issue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	headers := bearer(t, "user-1")
	headers[anonymousTokenHeader] = token
	rec := f.do(t, http.MethodPost, "/api/cart/merge", "", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.carts.merged != guestID {
		t.Fatalf("expected merge of %s, got %s", guestID, f.carts.merged)
	}

	rec = f.do(t, http.MethodPost, "/api/cart/merge", "", bearer(t, "user-1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without guest token, got %d", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/orders", "", bearer(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"orders":[]`) {
		t.Fatalf("expected empty orders array, got %s", rec.Body.String())
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	f := newFixture(t, nil)
	path := "/api/admin/orders/ord-1/status"
	body := `{"status":"shipped","trackingNumber":"TRK1"}`

	if rec := f.do(t, http.MethodPatch, path, body, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPatch, path, body, map[string]string{adminKeyHeader: "admin-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPatch, path, `{"status":"lost"}`, map[string]string{adminKeyHeader: "admin-key"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	f.orders.err = domain.ErrInvalidTransition
	if rec := f.do(t, http.MethodPatch, path, body, map[string]string{adminKeyHeader: "admin-key"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestSearchPostcodes(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/postcodes?q=2000", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body struct {
		Results []postcode.Entry `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) == 0 || body.Results[0].Postcode != "2000" {
		t.Fatalf("unexpected results %+v", body.Results)
	}
	if rec := f.do(t, http.MethodGet, "/api/postcodes", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Invalid("x", "y"), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrSignatureMismatch, http.StatusUnauthorized},
		{domain.ErrConflict, http.StatusConflict},
		{&domain.UpstreamError{Service: "payment", Kind: domain.ErrUpstreamUnavailable}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestClientLimiter_SweepsIdle(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	l.allow("a")
	now = now.Add(time.Hour)
	l.allow("b")
	if _, ok := l.clients["a"]; ok {
		t.Fatalf("expected idle client to be swept")
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.CORSOrigins = []string{"https://shop.example"} })
	rec := f.do(t, http.MethodGet, "/api/catalog/products", "", map[string]string{"Origin": "https://shop.example"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if cfg := corsConfig([]string{"*"}); !cfg.AllowAllOrigins || cfg.AllowCredentials {
		t.Fatalf("wildcard origin should allow all without credentials")
	}
}
