package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
)

type couponDTO struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	DiscountType   coupon.DiscountType `json:"discountType"`
	Value          decimal.Decimal     `json:"value"`
	MinOrderAmount decimal.Decimal     `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal    `json:"maxDiscount,omitempty"`
	UsageLimit     int                 `json:"usageLimit"`
	TimesUsed      int                 `json:"timesUsed"`
	ExpiresAt      *time.Time          `json:"expiryDate,omitempty"`
	Active         bool                `json:"isActive"`
	CreatedAt      time.Time           `json:"createdAt"`
}

type couponRequest struct {
	Code           string              `json:"code"`
	DiscountType   coupon.DiscountType `json:"discountType"`
	Value          decimal.Decimal     `json:"value"`
	MinOrderAmount decimal.Decimal     `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal    `json:"maxDiscount"`
	UsageLimit     int                 `json:"usageLimit"`
	ExpiresAt      *time.Time          `json:"expiryDate"`
	Active         *bool               `json:"isActive"`
}

func toCouponDTO(rule *coupon.Rule) couponDTO {
	return couponDTO{
		ID:             rule.ID,
		Code:           rule.Code,
		DiscountType:   rule.DiscountType,
		Value:          rule.Value,
		MinOrderAmount: rule.MinOrderAmount,
		MaxDiscount:    rule.MaxDiscount,
		UsageLimit:     rule.UsageLimit,
		TimesUsed:      rule.TimesUsed,
		ExpiresAt:      rule.ExpiresAt,
		Active:         rule.Active,
		CreatedAt:      rule.CreatedAt,
	}
}

func (req *couponRequest) validate() string {
	if strings.TrimSpace(req.Code) == "" {
		return "coupon code is required"
	}
	if req.DiscountType != coupon.DiscountPercentage && req.DiscountType != coupon.DiscountFixed {
		return "discountType must be percentage or fixed_amount"
	}
	if req.Value.LessThanOrEqual(decimal.Zero) {
		return "value must be positive"
	}
	if req.DiscountType == coupon.DiscountPercentage && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		return "percentage value cannot exceed 100"
	}
	return ""
}

type validateCouponRequest struct {
	Code  string          `json:"code"`
	Total decimal.Decimal `json:"total"`
}

type validateCouponResponse struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	NewTotal       decimal.Decimal `json:"newTotal"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	discount, err := h.validator.Validate(r.Context(), req.Code, req.Total)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateCouponResponse{
		Code:           discount.Code,
		DiscountAmount: discount.Amount,
		NewTotal:       discount.NewTotal,
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	rules, err := h.coupons.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]couponDTO, len(rules))
	for i := range rules {
		dtos[i] = toCouponDTO(&rules[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	rule := &coupon.Rule{
		ID:             uuid.New().String(),
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountType:   req.DiscountType,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		UsageLimit:     req.UsageLimit,
		ExpiresAt:      req.ExpiresAt,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := h.coupons.Create(r.Context(), rule); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponDTO(rule))
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	rule := &coupon.Rule{
		ID:             chi.URLParam(r, "id"),
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountType:   req.DiscountType,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		UsageLimit:     req.UsageLimit,
		ExpiresAt:      req.ExpiresAt,
		Active:         true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := h.coupons.Update(r.Context(), rule); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Re-read so the response carries the stored usage counter and
	// creation time, which the update statement leaves alone.
	stored, err := h.coupons.FindByCode(r.Context(), rule.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponDTO(stored))
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
