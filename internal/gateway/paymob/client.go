// Package paymob is a minimal client for the Paymob Accept API: token
// auth, order registration, payment key issuance and webhook verification.
package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultBaseURL is the production Accept API endpoint.
const DefaultBaseURL = "https://accept.paymobsolutions.com/api"

// Config holds the merchant credentials for the Accept API.
type Config struct {
	APIKey        string
	HMACSecret    string
	IntegrationID int64
	IframeID      string
	BaseURL       string
}

// Client talks to the Paymob Accept API and implements
// order.PaymentGateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ order.PaymentGateway = (*Client)(nil)

// NewClient creates a Paymob client from merchant credentials.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ---- Accept API request/response structs ----

type authRequest struct {
	APIKey string `json:"api_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

type orderItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type registerOrderRequest struct {
	AuthToken       string      `json:"auth_token"`
	DeliveryNeeded  string      `json:"delivery_needed"`
	MerchantOrderID string      `json:"merchant_order_id"`
	AmountCents     int64       `json:"amount_cents"`
	Currency        string      `json:"currency"`
	Items           []orderItem `json:"items"`
}

type registerOrderResponse struct {
	ID int64 `json:"id"`
}

type billingData struct {
	Apartment      string `json:"apartment"`
	Email          string `json:"email"`
	Floor          string `json:"floor"`
	FirstName      string `json:"first_name"`
	Street         string `json:"street"`
	Building       string `json:"building"`
	PhoneNumber    string `json:"phone_number"`
	ShippingMethod string `json:"shipping_method"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Country        string `json:"country"`
	LastName       string `json:"last_name"`
	State          string `json:"state"`
}

type paymentKeyRequest struct {
	AuthToken     string      `json:"auth_token"`
	AmountCents   int64       `json:"amount_cents"`
	Expiration    int         `json:"expiration"`
	OrderID       int64       `json:"order_id"`
	BillingData   billingData `json:"billing_data"`
	Currency      string      `json:"currency"`
	IntegrationID int64       `json:"integration_id"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

// CreatePayment runs the three-step Accept flow: authenticate, register
// the order, obtain a payment key, and returns the hosted iframe URL the
// customer completes the card payment in.
func (c *Client) CreatePayment(ctx context.Context, o *order.Order) (*order.PaymentIntent, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "authenticate")
	}

	amountCents := o.Total.Mul(decimal.NewFromInt(100)).IntPart()

	paymobOrderID, err := c.registerOrder(ctx, token, o, amountCents)
	if err != nil {
		return nil, errors.Wrap(err, "register order")
	}

	paymentKey, err := c.paymentKey(ctx, token, o, paymobOrderID, amountCents)
	if err != nil {
		return nil, errors.Wrap(err, "payment key")
	}

	return &order.PaymentIntent{
		PaymobOrderID: paymobOrderID,
		IframeURL: "https://accept.paymobsolutions.com/api/acceptance/iframes/" +
			c.cfg.IframeID + "?payment_token=" + paymentKey,
	}, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	var resp authResponse
	err := c.post(ctx, "/auth/tokens", authRequest{APIKey: c.cfg.APIKey}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("empty auth token")
	}
	return resp.Token, nil
}

func (c *Client) registerOrder(ctx context.Context, token string, o *order.Order, amountCents int64) (int64, error) {
	items := make([]orderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItem{
			Name:        it.Name,
			AmountCents: it.Price.Mul(decimal.NewFromInt(100)).IntPart(),
			Description: it.Name,
			Quantity:    it.Quantity,
		}
	}
	req := registerOrderRequest{
		AuthToken:       token,
		DeliveryNeeded:  "false",
		MerchantOrderID: o.ID,
		AmountCents:     amountCents,
		Currency:        "EGP",
		Items:           items,
	}
	var resp registerOrderResponse
	if err := c.post(ctx, "/ecommerce/orders", req, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) paymentKey(ctx context.Context, token string, o *order.Order, paymobOrderID, amountCents int64) (string, error) {
	first, last := splitName(o.Address.FullName)
	req := paymentKeyRequest{
		AuthToken:   token,
		AmountCents: amountCents,
		Expiration:  3600,
		OrderID:     paymobOrderID,
		BillingData: billingData{
			Apartment:      "NA",
			Email:          orDefault(o.Address.Email, "NA"),
			Floor:          "NA",
			FirstName:      orDefault(first, "NA"),
			Street:         orDefault(o.Address.Street, "NA"),
			Building:       "NA",
			PhoneNumber:    o.Address.Phone,
			ShippingMethod: "NA",
			PostalCode:     "NA",
			City:           o.Address.City,
			Country:        "EG",
			LastName:       orDefault(last, "NA"),
			State:          orDefault(o.Address.Governorate, "NA"),
		},
		Currency:      "EGP",
		IntegrationID: c.cfg.IntegrationID,
	}
	var resp paymentKeyResponse
	if err := c.post(ctx, "/acceptance/payment_keys", req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("empty payment key")
	}
	return resp.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("paymob %s: status %d: %s", path, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
