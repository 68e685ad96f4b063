package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/gateway/paymob"
	"github.com/xenking/storefront/internal/gateway/shipping"
)

const (
	testJWTSecret      = "test-jwt-secret"
	testPaymobSecret   = "test-paymob-secret"
	testShippingSecret = "test-shipping-secret"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID     map[string]*product.Product
	order    []string
	deducted [][]product.StockAdjustment
	restored [][]product.StockAdjustment
}

func newMockProductRepo(products ...*product.Product) *mockProductRepo {
	m := &mockProductRepo{byID: make(map[string]*product.Product)}
	for _, p := range products {
		m.byID[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.byID[id])
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) Create(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *product.Product) error {
	if _, ok := m.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	m.byID[p.ID] = p
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.byID, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockProductRepo) DeductStock(_ context.Context, adjustments []product.StockAdjustment) error {
	m.deducted = append(m.deducted, adjustments)
	return nil
}

func (m *mockProductRepo) RestoreStock(_ context.Context, adjustments []product.StockAdjustment) error {
	m.restored = append(m.restored, adjustments)
	return nil
}

type mockCategoryRepo struct {
	byID map[string]*product.Category
}

func (m *mockCategoryRepo) ListCategories(_ context.Context) ([]product.Category, error) {
	out := make([]product.Category, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCategoryRepo) GetCategory(_ context.Context, id string) (*product.Category, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, product.ErrCategoryNotFound
	}
	return c, nil
}

func (m *mockCategoryRepo) CreateCategory(_ context.Context, c *product.Category) error {
	m.byID[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) UpdateCategory(_ context.Context, c *product.Category) error {
	if _, ok := m.byID[c.ID]; !ok {
		return product.ErrCategoryNotFound
	}
	m.byID[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) DeleteCategory(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return product.ErrCategoryNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockCartRepo struct {
	byUser  map[string]*cart.Cart
	byGuest map[string]*cart.Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		byUser:  make(map[string]*cart.Cart),
		byGuest: make(map[string]*cart.Cart),
	}
}

func (m *mockCartRepo) FindByUser(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := m.byUser[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) FindByGuest(_ context.Context, guestID string) (*cart.Cart, error) {
	c, ok := m.byGuest[guestID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart) error {
	if c.UserID != "" {
		m.byUser[c.UserID] = c
	}
	if c.GuestID != "" {
		m.byGuest[c.GuestID] = c
	}
	return nil
}

func (m *mockCartRepo) DeleteByGuest(_ context.Context, guestID string) error {
	delete(m.byGuest, guestID)
	return nil
}

func (m *mockCartRepo) ClearByUser(_ context.Context, userID string) error {
	if c, ok := m.byUser[userID]; ok {
		c.Items = nil
	}
	return nil
}

func (m *mockCartRepo) ListAbandoned(_ context.Context, _, _ time.Time) ([]cart.Cart, error) {
	return nil, nil
}

func (m *mockCartRepo) MarkReminded(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type mockCouponRepo struct {
	byCode     map[string]*coupon.Rule
	increments map[string]int
}

func newMockCouponRepo(rules ...*coupon.Rule) *mockCouponRepo {
	m := &mockCouponRepo{
		byCode:     make(map[string]*coupon.Rule),
		increments: make(map[string]int),
	}
	for _, r := range rules {
		m.byCode[r.Code] = r
	}
	return m
}

func (m *mockCouponRepo) List(_ context.Context) ([]coupon.Rule, error) {
	out := make([]coupon.Rule, 0, len(m.byCode))
	for _, r := range m.byCode {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return r, nil
}

func (m *mockCouponRepo) Create(_ context.Context, r *coupon.Rule) error {
	m.byCode[r.Code] = r
	return nil
}

func (m *mockCouponRepo) Update(_ context.Context, r *coupon.Rule) error {
	for code, old := range m.byCode {
		if old.ID == r.ID {
			// The SQL update leaves times_used and created_at alone.
			merged := *r
			merged.TimesUsed = old.TimesUsed
			merged.CreatedAt = old.CreatedAt
			delete(m.byCode, code)
			m.byCode[merged.Code] = &merged
			return nil
		}
	}
	return coupon.ErrNotFound
}

func (m *mockCouponRepo) Delete(_ context.Context, id string) error {
	for code, r := range m.byCode {
		if r.ID == id {
			delete(m.byCode, code)
			return nil
		}
	}
	return coupon.ErrNotFound
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.increments[code]++
	return nil
}

type mockOrderRepo struct {
	byID map[string]*order.Order
}

func newMockOrderRepo(orders ...*order.Order) *mockOrderRepo {
	m := &mockOrderRepo{byID: make(map[string]*order.Order)}
	for _, o := range orders {
		m.byID[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetByPaymobOrderID(_ context.Context, paymobID int64) (*order.Order, error) {
	for _, o := range m.byID {
		if o.PaymobOrderID == paymobID {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) GetByTrackingID(_ context.Context, trackingID string) (*order.Order, error) {
	for _, o := range m.byID {
		if o.TrackingID == trackingID {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

type mockPaymentGateway struct {
	intent *order.PaymentIntent
	err    error
}

func (m *mockPaymentGateway) CreatePayment(_ context.Context, _ *order.Order) (*order.PaymentIntent, error) {
	return m.intent, m.err
}

type mockShippingGateway struct {
	shipment *order.Shipment
	err      error
}

func (m *mockShippingGateway) CreateShipment(_ context.Context, _ *order.Order) (*order.Shipment, error) {
	return m.shipment, m.err
}

type mockNotifier struct {
	confirmations int
}

func (m *mockNotifier) OrderConfirmation(_ context.Context, _ *order.Order) error {
	m.confirmations++
	return nil
}

// --- Test environment ---

type env struct {
	products *mockProductRepo
	carts    *mockCartRepo
	coupons  *mockCouponRepo
	orders   *mockOrderRepo
	notifier *mockNotifier
	router   http.Handler
}

func newEnv(t *testing.T, products ...*product.Product) *env {
	t.Helper()

	productRepo := newMockProductRepo(products...)
	categoryRepo := &mockCategoryRepo{byID: make(map[string]*product.Category)}
	cartRepo := newMockCartRepo()
	couponRepo := newMockCouponRepo()
	orderRepo := newMockOrderRepo()
	notifier := &mockNotifier{}

	validator := coupon.NewRepoValidator(couponRepo)
	cartSvc := cart.NewService(productRepo, cartRepo)
	orderSvc := order.NewService(
		productRepo, cartRepo, validator, couponRepo, orderRepo,
		&mockPaymentGateway{intent: &order.PaymentIntent{PaymobOrderID: 4242, IframeURL: "https://pay.example/iframe?token=abc"}},
		&mockShippingGateway{shipment: &order.Shipment{TrackingID: "TRK-1", Status: "CREATED"}},
		notifier,
		zap.NewNop(),
	)

	h := New(Config{
		Products:   productRepo,
		Categories: categoryRepo,
		Carts:      cartSvc,
		Coupons:    couponRepo,
		Validator:  validator,
		Orders:     orderSvc,
		Payments:   paymob.NewClient(paymob.Config{HMACSecret: testPaymobSecret}),
		Carrier:    shipping.NewClient(shipping.Config{WebhookSecret: testShippingSecret}),
		JWTSecret:  testJWTSecret,
		Logger:     zap.NewNop(),
	})

	return &env{
		products: productRepo,
		carts:    cartRepo,
		coupons:  couponRepo,
		orders:   orderRepo,
		notifier: notifier,
		router:   h.Routes(),
	}
}

type reqOption func(*http.Request)

func asGuest(guestID string) reqOption {
	return func(r *http.Request) { r.Header.Set(guestHeader, guestID) }
}

func asUser(t *testing.T, userID string, admin bool) reqOption {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Email:  userID + "@example.com",
		Name:   "Test User",
		Admin:  admin,
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (e *env) do(t *testing.T, method, path string, body any, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func plainProduct(id string, price int64, stock int) *product.Product {
	return &product.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     decimal.NewFromInt(price),
		Stock:     stock,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func flashProduct(id string, price, flashPrice int64, stock int) *product.Product {
	p := plainProduct(id, price, stock)
	fp := decimal.NewFromInt(flashPrice)
	ends := time.Now().Add(24 * time.Hour)
	p.FlashSale = product.FlashSale{Active: true, Price: &fp, EndsAt: &ends}
	return p
}

// --- Product endpoints ---

func TestListProducts(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10), flashProduct("p2", 200, 150, 5))

	rec := e.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dtos := decodeBody[[]productDTO](t, rec)
	require.Len(t, dtos, 2)
	assert.Equal(t, "p1", dtos[0].ID)
	assert.True(t, dtos[0].EffectivePrice.Equal(decimal.NewFromInt(100)))
	assert.False(t, dtos[0].OnFlashSale)
	assert.Equal(t, "p2", dtos[1].ID)
	assert.True(t, dtos[1].OnFlashSale)
	assert.True(t, dtos[1].EffectivePrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, dtos[1].Price.Equal(decimal.NewFromInt(200)))
}

func TestGetProduct_NotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_AuthGuards(t *testing.T) {
	e := newEnv(t)
	body := productRequest{Name: "Widget", Price: decimal.NewFromInt(50), Stock: 3}

	rec := e.do(t, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/products", body, asUser(t, "user-1", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/products", body, asUser(t, "admin-1", true))
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decodeBody[productDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "Widget", dto.Name)
}

func TestCreateProduct_InvalidFlashSale(t *testing.T) {
	e := newEnv(t)
	fp := decimal.NewFromInt(80)
	ends := time.Now().Add(time.Hour)
	body := productRequest{
		Name:        "Widget",
		Price:       decimal.NewFromInt(50),
		Stock:       3,
		OnFlashSale: true,
		FlashPrice:  &fp,
		FlashEndsAt: &ends,
	}

	rec := e.do(t, http.MethodPost, "/api/products", body, asUser(t, "admin-1", true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProduct_KeepsCreatedAt(t *testing.T) {
	p := plainProduct("p1", 100, 10)
	created := p.CreatedAt
	e := newEnv(t, p)

	body := productRequest{Name: "Renamed", Price: decimal.NewFromInt(120), Stock: 7}
	rec := e.do(t, http.MethodPut, "/api/products/p1", body, asUser(t, "admin-1", true))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Renamed", e.products.byID["p1"].Name)
	assert.True(t, e.products.byID["p1"].CreatedAt.Equal(created))
}

// --- Cart endpoints ---

func TestCartFlow_Guest(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodPost, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 2}, asGuest("guest-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeBody[cartDTO](t, rec)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 2, dto.Items[0].Quantity)
	assert.True(t, dto.Subtotal.Equal(decimal.NewFromInt(200)))

	rec = e.do(t, http.MethodGet, "/api/cart", nil, asGuest("guest-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decodeBody[cartDTO](t, rec)
	require.Len(t, dto.Items, 1)

	// A different guest sees an empty cart.
	rec = e.do(t, http.MethodGet, "/api/cart", nil, asGuest("guest-2"))
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decodeBody[cartDTO](t, rec)
	assert.Empty(t, dto.Items)
}

func TestAddCartItem_InsufficientStock(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 3))

	rec := e.do(t, http.MethodPost, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 5}, asGuest("guest-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Contains(t, body.Error, "available")
}

func TestUpdateCartItem_ProductGone(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodPost, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 1}, asGuest("guest-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, e.products.Delete(context.Background(), "p1"))

	rec = e.do(t, http.MethodPut, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 2}, asGuest("guest-1"))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// The orphaned line is pruned and the surviving cart comes back with
	// the error so the client can re-render.
	body := decodeBody[prunedCartDTO](t, rec)
	assert.Contains(t, body.Error, "p1")
	assert.Empty(t, body.Cart.Items)
}

func TestClearCart_RequiresUser(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodDelete, "/api/cart", nil, asGuest("guest-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/cart", nil, asUser(t, "user-1", false))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMergeCart(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodPost, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 2}, asGuest("guest-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/cart/merge",
		mergeCartRequest{GuestID: "guest-1"}, asUser(t, "user-1", false))
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeBody[cartDTO](t, rec)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 2, dto.Items[0].Quantity)

	_, ok := e.carts.byGuest["guest-1"]
	assert.False(t, ok, "guest cart should be deleted after merge")
}

// --- Coupon endpoints ---

func TestValidateCoupon(t *testing.T) {
	e := newEnv(t)
	e.coupons.byCode["SAVE10"] = &coupon.Rule{
		ID:           "c1",
		Code:         "SAVE10",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		Active:       true,
	}

	body := validateCouponRequest{Code: "save10", Total: decimal.NewFromInt(200)}

	rec := e.do(t, http.MethodPost, "/api/coupons/validate", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/coupons/validate", body, asUser(t, "user-1", false))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[validateCouponResponse](t, rec)
	assert.Equal(t, "SAVE10", resp.Code)
	assert.True(t, resp.DiscountAmount.Equal(decimal.NewFromInt(20)))
	assert.True(t, resp.NewTotal.Equal(decimal.NewFromInt(180)))
	assert.Zero(t, e.coupons.increments["SAVE10"], "validation must not consume usage")
}

func TestValidateCoupon_Expired(t *testing.T) {
	e := newEnv(t)
	expired := time.Now().Add(-time.Hour)
	e.coupons.byCode["OLD"] = &coupon.Rule{
		ID:           "c1",
		Code:         "OLD",
		DiscountType: coupon.DiscountFixed,
		Value:        decimal.NewFromInt(5),
		Active:       true,
		ExpiresAt:    &expired,
	}

	rec := e.do(t, http.MethodPost, "/api/coupons/validate",
		validateCouponRequest{Code: "OLD", Total: decimal.NewFromInt(100)},
		asUser(t, "user-1", false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCoupon_AdminOnly(t *testing.T) {
	e := newEnv(t)
	body := couponRequest{
		Code:         "NEW15",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(15),
	}

	rec := e.do(t, http.MethodPost, "/api/coupons", body, asUser(t, "user-1", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/coupons", body, asUser(t, "admin-1", true))
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decodeBody[couponDTO](t, rec)
	assert.Equal(t, "NEW15", dto.Code)
	assert.True(t, dto.Active)
}

func TestCreateCoupon_PercentageBounds(t *testing.T) {
	e := newEnv(t)
	body := couponRequest{
		Code:         "TOOMUCH",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(150),
	}

	rec := e.do(t, http.MethodPost, "/api/coupons", body, asUser(t, "admin-1", true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCoupon_KeepsStoredCounters(t *testing.T) {
	e := newEnv(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e.coupons.byCode["SAVE10"] = &coupon.Rule{
		ID:           "c1",
		Code:         "SAVE10",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		TimesUsed:    7,
		Active:       true,
		CreatedAt:    created,
	}

	rec := e.do(t, http.MethodPut, "/api/coupons/c1", couponRequest{
		Code:         "SAVE10",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(15),
	}, asUser(t, "admin-1", true))
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeBody[couponDTO](t, rec)
	assert.True(t, dto.Value.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 7, dto.TimesUsed)
	assert.Equal(t, created, dto.CreatedAt)
}

// --- Checkout and orders ---

func cairoAddress() order.Address {
	return order.Address{
		FullName:    "Ahmed Hassan",
		Phone:       "+201001234567",
		Email:       "ahmed@example.com",
		Street:      "12 Tahrir St",
		City:        "Cairo",
		Governorate: "Cairo",
	}
}

func TestShippingRates(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/orders/shipping-rates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rates := decodeBody[map[string]decimal.Decimal](t, rec)
	assert.True(t, rates["Cairo"].Equal(decimal.NewFromInt(50)))
	assert.True(t, rates["Aswan"].Equal(decimal.NewFromInt(100)))
	assert.True(t, rates["North Sinai"].Equal(decimal.NewFromInt(150)))
}

func TestCheckoutCOD(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodPost, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 2}, asGuest("guest-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/orders/checkout",
		checkoutRequest{Address: cairoAddress()}, asGuest("guest-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[checkoutResponse](t, rec)
	assert.True(t, resp.Order.Total.Equal(decimal.NewFromInt(250)), "2x100 + 50 shipping")
	assert.Equal(t, string(order.StatusProcessing), resp.Order.Status)
	assert.Equal(t, "TRK-1", resp.Order.TrackingID)
	assert.Empty(t, resp.PaymentURL)
	assert.Equal(t, 1, e.notifier.confirmations)
	require.Len(t, e.products.deducted, 1)
}

func TestCheckoutOnline(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodPost, "/api/cart/items",
		cartItemRequest{ProductID: "p1", Quantity: 1}, asGuest("guest-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/orders/pay-with-paymob",
		checkoutRequest{Address: cairoAddress()}, asGuest("guest-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[checkoutResponse](t, rec)
	assert.Equal(t, string(order.StatusPendingPayment), resp.Order.Status)
	assert.Equal(t, "https://pay.example/iframe?token=abc", resp.PaymentURL)
	assert.Zero(t, e.notifier.confirmations, "email waits for the payment webhook")
}

func TestCheckout_Validation(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	addr := cairoAddress()
	addr.FullName = ""
	rec := e.do(t, http.MethodPost, "/api/orders/checkout",
		checkoutRequest{Address: addr}, asGuest("guest-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	addr = cairoAddress()
	addr.Governorate = "Atlantis"
	rec = e.do(t, http.MethodPost, "/api/orders/checkout",
		checkoutRequest{Address: addr}, asGuest("guest-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	rec := e.do(t, http.MethodPost, "/api/orders/checkout",
		checkoutRequest{Address: cairoAddress()}, asGuest("guest-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_GuestPayloadItems(t *testing.T) {
	e := newEnv(t, plainProduct("p1", 100, 10))

	// No cart is ever created; the lines ride in the checkout body.
	rec := e.do(t, http.MethodPost, "/api/orders/checkout", checkoutRequest{
		Address: cairoAddress(),
		Items:   []cartItemRequest{{ProductID: "p1", Quantity: 2}},
	}, asGuest("guest-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[checkoutResponse](t, rec)
	assert.True(t, resp.Order.Total.Equal(decimal.NewFromInt(250)), "2x100 + 50 shipping")
	require.Len(t, e.products.deducted, 1)

	rec = e.do(t, http.MethodPost, "/api/orders/checkout", checkoutRequest{
		Address: cairoAddress(),
		Items:   []cartItemRequest{{ProductID: "p1", Quantity: 0}},
	}, asGuest("guest-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	e.orders.byID["o1"] = &order.Order{
		ID:     "o1",
		UserID: "user-1",
		Status: order.StatusPending,
		Items:  []order.Item{{ProductID: "p1", Quantity: 1}},
	}

	rec := e.do(t, http.MethodPost, "/api/orders/o1/cancel", nil, asUser(t, "user-2", false))
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot see the order")

	rec = e.do(t, http.MethodPost, "/api/orders/o1/cancel", nil, asUser(t, "user-1", false))
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeBody[orderDTO](t, rec)
	assert.Equal(t, string(order.StatusCancelled), dto.Status)
	require.Len(t, e.products.restored, 1)
}

func TestListMyOrders(t *testing.T) {
	e := newEnv(t)
	e.orders.byID["o1"] = &order.Order{ID: "o1", UserID: "user-1", Status: order.StatusPending}
	e.orders.byID["o2"] = &order.Order{ID: "o2", UserID: "user-2", Status: order.StatusPending}

	rec := e.do(t, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/orders", nil, asUser(t, "user-1", false))
	require.Equal(t, http.StatusOK, rec.Code)

	dtos := decodeBody[[]orderDTO](t, rec)
	require.Len(t, dtos, 1)
	assert.Equal(t, "o1", dtos[0].ID)
}

func TestUpdateOrderStatus(t *testing.T) {
	e := newEnv(t)
	e.orders.byID["o1"] = &order.Order{ID: "o1", UserID: "user-1", Status: order.StatusProcessing}

	body := updateStatusRequest{Status: string(order.StatusShipped)}

	rec := e.do(t, http.MethodPut, "/api/orders/o1/status", body, asUser(t, "user-1", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/orders/o1/status", body, asUser(t, "admin-1", true))
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodeBody[orderDTO](t, rec)
	assert.Equal(t, string(order.StatusShipped), dto.Status)

	// Shipped -> Processing is not a legal transition.
	rec = e.do(t, http.MethodPut, "/api/orders/o1/status",
		updateStatusRequest{Status: string(order.StatusProcessing)}, asUser(t, "admin-1", true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Webhooks ---

// paymobSign mirrors the gateway's signed-field concatenation so the tests
// can produce a valid callback signature.
func paymobSign(secret string, cb *paymob.TransactionCallback) string {
	payload := strconv.FormatInt(cb.AmountCents, 10) +
		cb.CreatedAt +
		cb.Currency +
		strconv.FormatBool(cb.ErrorOccured) +
		strconv.FormatBool(cb.HasParentTransaction) +
		strconv.FormatInt(cb.ID, 10) +
		strconv.FormatInt(cb.IntegrationID, 10) +
		strconv.FormatBool(cb.Is3DSecure) +
		strconv.FormatBool(cb.IsAuth) +
		strconv.FormatBool(cb.IsCapture) +
		strconv.FormatBool(cb.IsCardTest) +
		strconv.FormatBool(cb.IsFlagged) +
		strconv.FormatBool(cb.IsGateway) +
		strconv.FormatBool(cb.IsNull) +
		strconv.FormatBool(cb.IsPaid) +
		strconv.FormatBool(cb.IsRefunded) +
		strconv.FormatBool(cb.IsStandalone) +
		strconv.FormatBool(cb.IsVoided) +
		strconv.FormatInt(cb.Order.ID, 10) +
		strconv.FormatInt(cb.Owner, 10) +
		strconv.FormatBool(cb.Pending) +
		cb.SourceData.Pan +
		cb.SourceData.SubType +
		cb.SourceData.Type +
		strconv.FormatBool(cb.Success)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func pendingPaymentOrder() *order.Order {
	return &order.Order{
		ID:            "o1",
		UserID:        "user-1",
		Status:        order.StatusPendingPayment,
		PaymentMethod: order.PaymentOnline,
		PaymobOrderID: 4242,
		Items:         []order.Item{{ProductID: "p1", Quantity: 1}},
		Address:       cairoAddress(),
	}
}

func TestPaymobWebhook(t *testing.T) {
	cb := paymob.TransactionCallback{
		ID:          777,
		AmountCents: 25000,
		Currency:    "EGP",
		IsPaid:      true,
		Success:     true,
	}
	cb.Order.ID = 4242

	t.Run("bad signature", func(t *testing.T) {
		e := newEnv(t)
		e.orders.byID["o1"] = pendingPaymentOrder()

		rec := e.do(t, http.MethodPost, "/api/webhooks/paymob",
			paymobEnvelope{Obj: cb, HMAC: "deadbeef"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, order.StatusPendingPayment, e.orders.byID["o1"].Status)
	})

	t.Run("success confirms order", func(t *testing.T) {
		e := newEnv(t)
		e.orders.byID["o1"] = pendingPaymentOrder()

		rec := e.do(t, http.MethodPost, "/api/webhooks/paymob",
			paymobEnvelope{Obj: cb, HMAC: paymobSign(testPaymobSecret, &cb)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		o := e.orders.byID["o1"]
		assert.Equal(t, order.StatusProcessing, o.Status)
		assert.Equal(t, int64(777), o.TransactionID)
		assert.Equal(t, "TRK-1", o.TrackingID)
		assert.Equal(t, 1, e.notifier.confirmations)
	})

	t.Run("signature in query string", func(t *testing.T) {
		e := newEnv(t)
		e.orders.byID["o1"] = pendingPaymentOrder()

		path := fmt.Sprintf("/api/webhooks/paymob?hmac=%s", paymobSign(testPaymobSecret, &cb))
		rec := e.do(t, http.MethodPost, path, paymobEnvelope{Obj: cb})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, order.StatusProcessing, e.orders.byID["o1"].Status)
	})

	t.Run("failure cancels and releases stock", func(t *testing.T) {
		e := newEnv(t)
		e.orders.byID["o1"] = pendingPaymentOrder()

		failed := cb
		failed.Success = false
		rec := e.do(t, http.MethodPost, "/api/webhooks/paymob",
			paymobEnvelope{Obj: failed, HMAC: paymobSign(testPaymobSecret, &failed)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, order.StatusCancelled, e.orders.byID["o1"].Status)
		require.Len(t, e.products.restored, 1)
	})
}

func TestShippingWebhook(t *testing.T) {
	shippedOrder := func() *order.Order {
		return &order.Order{
			ID:         "o1",
			UserID:     "user-1",
			Status:     order.StatusShipped,
			TrackingID: "TRK-1",
		}
	}
	sign := func(body []byte) string {
		mac := hmac.New(sha256.New, []byte(testShippingSecret))
		mac.Write(body)
		return "sha256=" + hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("bad signature", func(t *testing.T) {
		e := newEnv(t)
		e.orders.byID["o1"] = shippedOrder()

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/shipping",
			bytes.NewBufferString(`{"tracking_id":"TRK-1","status":"DELIVERED"}`))
		req.Header.Set("X-Webhook-Signature", "sha256=deadbeef")
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, order.StatusShipped, e.orders.byID["o1"].Status)
	})

	t.Run("delivered", func(t *testing.T) {
		e := newEnv(t)
		e.orders.byID["o1"] = shippedOrder()

		body := []byte(`{"tracking_id":"TRK-1","status":"DELIVERED"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/shipping", bytes.NewBuffer(body))
		req.Header.Set("X-Webhook-Signature", sign(body))
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, order.StatusDelivered, e.orders.byID["o1"].Status)
	})

	t.Run("unknown tracking id", func(t *testing.T) {
		e := newEnv(t)

		body := []byte(`{"tracking_id":"TRK-404","status":"DELIVERED"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/shipping", bytes.NewBuffer(body))
		req.Header.Set("X-Webhook-Signature", sign(body))
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
