package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

type cartItemDTO struct {
	ProductID     string                    `json:"productId"`
	Name          string                    `json:"name"`
	Price         decimal.Decimal           `json:"price"`
	OriginalPrice decimal.Decimal           `json:"originalPrice"`
	ImageURL      string                    `json:"imageUrl,omitempty"`
	Quantity      int                       `json:"quantity"`
	Selection     []product.SelectedVariant `json:"selectedVariants,omitempty"`
	Stock         int                       `json:"stock"`
	OnFlashSale   bool                      `json:"isOnFlashSale"`
	LineTotal     decimal.Decimal           `json:"lineTotal"`
}

type cartDTO struct {
	ID       string          `json:"id,omitempty"`
	Items    []cartItemDTO   `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// prunedCartDTO reports a removed line together with the cart that remains.
type prunedCartDTO struct {
	Error string  `json:"error"`
	Cart  cartDTO `json:"cart"`
}

func toCartDTO(v *cart.View) cartDTO {
	dto := cartDTO{Items: []cartItemDTO{}, Subtotal: decimal.Zero}
	if v.Cart != nil {
		dto.ID = v.Cart.ID
	}
	for _, it := range v.Items {
		lineTotal := it.Quote.UnitPrice.Mul(decimal.NewFromInt(int64(it.Item.Quantity))).Round(2)
		dto.Items = append(dto.Items, cartItemDTO{
			ProductID:     it.Item.ProductID,
			Name:          it.Item.Name,
			Price:         it.Quote.UnitPrice,
			OriginalPrice: it.Quote.OriginalPrice,
			ImageURL:      it.Quote.ImageURL,
			Quantity:      it.Item.Quantity,
			Selection:     it.Item.Selection,
			Stock:         it.Quote.Stock,
			OnFlashSale:   it.Quote.OnFlashSale,
			LineTotal:     lineTotal,
		})
		dto.Subtotal = dto.Subtotal.Add(lineTotal)
	}
	dto.Subtotal = dto.Subtotal.Round(2)
	return dto
}

type cartItemRequest struct {
	ProductID string                    `json:"productId"`
	Quantity  int                       `json:"quantity"`
	Selection []product.SelectedVariant `json:"selectedVariants"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Get(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(view))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	id := auth.FromContext(r.Context())
	if _, err := h.carts.Add(r.Context(), id, req.ProductID, req.Quantity, req.Selection); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, id)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	id := auth.FromContext(r.Context())
	if _, err := h.carts.Update(r.Context(), id, req.ProductID, req.Selection, req.Quantity); err != nil {
		var gone *cart.ProductGoneError
		if errors.As(err, &gone) {
			// The product vanished; the line was pruned. Report it together
			// with the surviving cart so the client can re-render.
			view, getErr := h.carts.Get(r.Context(), id)
			if getErr != nil {
				h.writeError(w, r, getErr)
				return
			}
			writeJSON(w, http.StatusNotFound, prunedCartDTO{
				Error: gone.Error(),
				Cart:  toCartDTO(view),
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, id)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	id := auth.FromContext(r.Context())
	if _, err := h.carts.Remove(r.Context(), id, req.ProductID, req.Selection); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, id)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.carts.Clear(r.Context(), id.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "cart cleared")
}

type mergeCartRequest struct {
	GuestID string `json:"guestId"`
}

func (h *Handler) mergeCart(w http.ResponseWriter, r *http.Request) {
	var req mergeCartRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.GuestID == "" {
		req.GuestID = r.Header.Get(guestHeader)
	}
	if req.GuestID == "" {
		writeMessage(w, http.StatusBadRequest, "guest id is required")
		return
	}
	id := auth.FromContext(r.Context())
	if _, err := h.carts.Merge(r.Context(), req.GuestID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, id)
}

// respondCart re-reads the cart so mutations answer with the same resolved
// view the GET endpoint serves.
func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	view, err := h.carts.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(view))
}
