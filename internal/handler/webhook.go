package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/gateway/paymob"
	"github.com/xenking/storefront/internal/gateway/shipping"
)

// paymobEnvelope is the webhook body: the transaction object plus the HMAC
// some integrations send in the body instead of the query string.
type paymobEnvelope struct {
	Obj  paymob.TransactionCallback `json:"obj"`
	HMAC string                     `json:"hmac"`
}

func (h *Handler) paymobWebhook(w http.ResponseWriter, r *http.Request) {
	var envelope paymobEnvelope
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&envelope); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	signature := envelope.HMAC
	if signature == "" {
		signature = r.URL.Query().Get("hmac")
	}
	if !h.payments.VerifyHMAC(&envelope.Obj, signature) {
		zctx.From(r.Context()).Warn("payment webhook rejected: bad signature",
			zap.Int64("transaction_id", envelope.Obj.ID))
		writeMessage(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	o, err := h.orders.HandlePaymentResult(r.Context(), envelope.Obj.Order.ID, envelope.Obj.ID, envelope.Obj.Success)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"orderId": o.ID,
		"status":  string(o.Status),
	})
}

func (h *Handler) shippingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unreadable body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !h.carrier.VerifySignature(body, signature) {
		zctx.From(r.Context()).Warn("shipping webhook rejected: bad signature")
		writeMessage(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var update shipping.StatusUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	if update.TrackingID == "" {
		writeMessage(w, http.StatusBadRequest, "tracking_id is required")
		return
	}

	o, err := h.orders.HandleCarrierStatus(r.Context(), update.TrackingID, update.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"orderId": o.ID,
		"status":  string(o.Status),
	})
}
