package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

// writeError maps domain errors to HTTP status codes. Anything unmapped is
// a 500 and gets logged; mapped errors are client mistakes and are not.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr        *cart.StockError
		insufficientErr *product.InsufficientStockError
		variantErr      *product.UnknownVariantError
		mismatchErr     *product.SelectionMismatchError
		minOrderErr     *coupon.MinOrderError
		governorateErr  *order.UnknownGovernorateError
		transitionErr   *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrCategoryNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())

	case errors.Is(err, cart.ErrNoIdentity):
		writeMessage(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, order.ErrGuestCoupon):
		writeMessage(w, http.StatusBadRequest, err.Error())

	case errors.As(err, &stockErr),
		errors.As(err, &insufficientErr),
		errors.As(err, &variantErr),
		errors.As(err, &mismatchErr),
		errors.As(err, &minOrderErr),
		errors.As(err, &governorateErr),
		errors.As(err, &transitionErr),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidItems),
		errors.Is(err, order.ErrNotCancellable):
		writeMessage(w, http.StatusBadRequest, err.Error())

	default:
		zctx.From(r.Context()).Error("internal error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
