package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

type variantOptionDTO struct {
	Value           string          `json:"value"`
	PriceAdjustment decimal.Decimal `json:"priceAdjustment"`
	Stock           int             `json:"stock"`
	ImageURL        string          `json:"imageUrl,omitempty"`
}

type variantGroupDTO struct {
	Name    string             `json:"name"`
	Options []variantOptionDTO `json:"options"`
}

type productDTO struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Price          decimal.Decimal   `json:"price"`
	EffectivePrice decimal.Decimal   `json:"effectivePrice"`
	ImageURL       string            `json:"imageUrl,omitempty"`
	CategoryID     string            `json:"categoryId,omitempty"`
	Stock          int               `json:"stock"`
	Variants       []variantGroupDTO `json:"variants,omitempty"`
	OnFlashSale    bool              `json:"isOnFlashSale"`
	FlashPrice     *decimal.Decimal  `json:"flashSalePrice,omitempty"`
	FlashEndsAt    *time.Time        `json:"flashSaleEndDate,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func toProductDTO(p *product.Product, now time.Time) productDTO {
	dto := productDTO{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		EffectivePrice: p.Price,
		ImageURL:       p.ImageURL,
		CategoryID:     p.CategoryID,
		Stock:          p.Stock,
		OnFlashSale:    p.FlashSale.ActiveAt(now),
		FlashPrice:     p.FlashSale.Price,
		FlashEndsAt:    p.FlashSale.EndsAt,
		CreatedAt:      p.CreatedAt,
	}
	if dto.OnFlashSale {
		dto.EffectivePrice = *p.FlashSale.Price
	}
	for _, g := range p.Variants {
		group := variantGroupDTO{Name: g.Name}
		for _, o := range g.Options {
			group.Options = append(group.Options, variantOptionDTO{
				Value:           o.Value,
				PriceAdjustment: o.PriceAdjustment,
				Stock:           o.Stock,
				ImageURL:        o.ImageURL,
			})
		}
		dto.Variants = append(dto.Variants, group)
	}
	return dto
}

type productRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       decimal.Decimal   `json:"price"`
	ImageURL    string            `json:"imageUrl"`
	CategoryID  string            `json:"categoryId"`
	Stock       int               `json:"stock"`
	Variants    []variantGroupDTO `json:"variants"`
	OnFlashSale bool              `json:"isOnFlashSale"`
	FlashPrice  *decimal.Decimal  `json:"flashSalePrice"`
	FlashEndsAt *time.Time        `json:"flashSaleEndDate"`
}

func (req *productRequest) toDomain(id string, createdAt time.Time) *product.Product {
	p := &product.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		Stock:       req.Stock,
		FlashSale: product.FlashSale{
			Active: req.OnFlashSale,
			Price:  req.FlashPrice,
			EndsAt: req.FlashEndsAt,
		},
		CreatedAt: createdAt,
	}
	for _, g := range req.Variants {
		group := product.VariantGroup{Name: g.Name}
		for _, o := range g.Options {
			group.Options = append(group.Options, product.VariantOption{
				Value:           o.Value,
				PriceAdjustment: o.PriceAdjustment,
				Stock:           o.Stock,
				ImageURL:        o.ImageURL,
			})
		}
		p.Variants = append(p.Variants, group)
	}
	return p
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	now := time.Now()
	dtos := make([]productDTO, len(products))
	for i := range products {
		dtos[i] = toProductDTO(&products[i], now)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p, time.Now()))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	p := req.toDomain(uuid.New().String(), time.Now())
	if err := p.Validate(time.Now()); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p, time.Now()))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	existing, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := req.toDomain(id, existing.CreatedAt)
	if err := p.Validate(time.Now()); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.products.Update(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p, time.Now()))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
