// Package shipping is a client for the carrier's shipment API.
package shipping

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// Config holds the carrier API credentials.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

// Client books shipments with the carrier and implements
// order.ShippingGateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ order.ShippingGateway = (*Client)(nil)

// NewClient creates a carrier client.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type shipmentItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type createShipmentRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	OrderID         string          `json:"order_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	CashOnDelivery  bool            `json:"cash_on_delivery"`
	Items           []shipmentItem  `json:"items"`
}

type createShipmentResponse struct {
	Success    bool   `json:"success"`
	TrackingID string `json:"trackingId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// CreateShipment books a delivery for the order and returns the carrier's
// tracking id.
func (c *Client) CreateShipment(ctx context.Context, o *order.Order) (*order.Shipment, error) {
	addr := strings.Join([]string{
		o.Address.Street, o.Address.City, o.Address.Governorate, "Egypt",
	}, ", ")

	items := make([]shipmentItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = shipmentItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price}
	}
	payload, err := json.Marshal(createShipmentRequest{
		CustomerName:    o.Address.FullName,
		CustomerPhone:   o.Address.Phone,
		CustomerAddress: addr,
		OrderID:         o.ID,
		TotalAmount:     o.Total,
		ShippingCost:    o.ShippingCost,
		CashOnDelivery:  o.PaymentMethod == order.PaymentCOD,
		Items:           items,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/create-shipment", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("carrier: status %d: %s", resp.StatusCode, raw)
	}

	var body createShipmentResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if !body.Success || body.TrackingID == "" {
		return nil, errors.Errorf("carrier rejected shipment: %s", body.Message)
	}
	return &order.Shipment{TrackingID: body.TrackingID, Status: body.Status}, nil
}

// StatusUpdate is the payload the carrier posts to the status webhook.
type StatusUpdate struct {
	TrackingID string `json:"tracking_id"`
	Status     string `json:"status"`
}

// VerifySignature checks the carrier webhook signature: hex HMAC-SHA256 of
// the raw body under the shared webhook secret, with or without the
// "sha256=" prefix.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	signature = strings.ToLower(strings.TrimPrefix(signature, "sha256="))
	return hmac.Equal([]byte(expected), []byte(signature))
}
