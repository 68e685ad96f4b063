package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

type orderDTO struct {
	ID             string          `json:"id"`
	Items          []order.Item    `json:"items"`
	Address        order.Address   `json:"shippingAddress"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	Discount       decimal.Decimal `json:"discountAmount"`
	CouponCode     string          `json:"couponCode,omitempty"`
	Total          decimal.Decimal `json:"totalAmount"`
	PaymentMethod  string          `json:"paymentMethod"`
	Status         string          `json:"status"`
	TrackingID     string          `json:"trackingId,omitempty"`
	TrackingStatus string          `json:"trackingStatus,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toOrderDTO(o *order.Order) orderDTO {
	return orderDTO{
		ID:             o.ID,
		Items:          o.Items,
		Address:        o.Address,
		Subtotal:       o.Subtotal,
		ShippingCost:   o.ShippingCost,
		Discount:       o.Discount,
		CouponCode:     o.CouponCode,
		Total:          o.Total,
		PaymentMethod:  string(o.PaymentMethod),
		Status:         string(o.Status),
		TrackingID:     o.TrackingID,
		TrackingStatus: o.TrackingStatus,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

type checkoutRequest struct {
	Address      order.Address    `json:"shippingAddress"`
	CouponCode   string           `json:"couponCode"`
	ShippingCost *decimal.Decimal `json:"shippingCost"`

	// Items is the guest fast path: lines submitted directly instead of a
	// server-side cart. Ignored for authenticated callers.
	Items []cartItemRequest `json:"items"`
}

func (req *checkoutRequest) validate() string {
	switch {
	case req.Address.FullName == "":
		return "full name is required"
	case req.Address.Phone == "":
		return "phone is required"
	case req.Address.Street == "":
		return "street address is required"
	case req.Address.Governorate == "":
		return "governorate is required"
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return "each item needs a product id and a positive quantity"
		}
	}
	return ""
}

func (req *checkoutRequest) items() []order.CheckoutItem {
	if len(req.Items) == 0 {
		return nil
	}
	items := make([]order.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.CheckoutItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Selection: it.Selection,
		})
	}
	return items
}

type checkoutResponse struct {
	Order      orderDTO `json:"order"`
	PaymentURL string   `json:"paymentUrl,omitempty"`
}

func (h *Handler) checkoutCOD(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, order.PaymentCOD)
}

func (h *Handler) checkoutOnline(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, order.PaymentOnline)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, method order.PaymentMethod) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	result, err := h.orders.Checkout(r.Context(), auth.FromContext(r.Context()), method, order.CheckoutRequest{
		Address:      req.Address,
		CouponCode:   req.CouponCode,
		ShippingCost: req.ShippingCost,
		Items:        req.items(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Order:      toOrderDTO(result.Order),
		PaymentURL: result.PaymentURL,
	})
}

func (h *Handler) shippingRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, order.Governorates())
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), auth.FromContext(r.Context()).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrderList(w, orders)
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrderList(w, orders)
}

func (h *Handler) writeOrderList(w http.ResponseWriter, orders []order.Order) {
	dtos := make([]orderDTO, len(orders))
	for i := range orders {
		dtos[i] = toOrderDTO(&orders[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}
