package paymob

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

// TransactionCallback is the transaction object Paymob posts to the
// webhook endpoint.
type TransactionCallback struct {
	ID                   int64  `json:"id"`
	AmountCents          int64  `json:"amount_cents"`
	CreatedAt            string `json:"created_at"`
	Currency             string `json:"currency"`
	ErrorOccured         bool   `json:"error_occured"`
	HasParentTransaction bool   `json:"has_parent_transaction"`
	IntegrationID        int64  `json:"integration_id"`
	Is3DSecure           bool   `json:"is_3d_secure"`
	IsAuth               bool   `json:"is_auth"`
	IsCapture            bool   `json:"is_capture"`
	IsCardTest           bool   `json:"is_card_test"`
	IsFlagged            bool   `json:"is_flagged"`
	IsGateway            bool   `json:"is_gateway"`
	IsNull               bool   `json:"is_null"`
	IsPaid               bool   `json:"is_paid"`
	IsRefunded           bool   `json:"is_refunded"`
	IsStandalone         bool   `json:"is_standalone"`
	IsVoided             bool   `json:"is_voided"`
	Owner                int64  `json:"owner"`
	Pending              bool   `json:"pending"`
	Success              bool   `json:"success"`

	Order struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`

	SourceData struct {
		Pan     string `json:"pan"`
		SubType string `json:"sub_type"`
		Type    string `json:"type"`
	} `json:"source_data"`
}

// signaturePayload concatenates the transaction fields Paymob signs, in
// the lexicographic field order their docs mandate. Booleans are rendered
// as "true"/"false" and numbers in plain decimal.
func (t *TransactionCallback) signaturePayload() string {
	var b strings.Builder
	for _, field := range []string{
		strconv.FormatInt(t.AmountCents, 10),
		t.CreatedAt,
		t.Currency,
		strconv.FormatBool(t.ErrorOccured),
		strconv.FormatBool(t.HasParentTransaction),
		strconv.FormatInt(t.ID, 10),
		strconv.FormatInt(t.IntegrationID, 10),
		strconv.FormatBool(t.Is3DSecure),
		strconv.FormatBool(t.IsAuth),
		strconv.FormatBool(t.IsCapture),
		strconv.FormatBool(t.IsCardTest),
		strconv.FormatBool(t.IsFlagged),
		strconv.FormatBool(t.IsGateway),
		strconv.FormatBool(t.IsNull),
		strconv.FormatBool(t.IsPaid),
		strconv.FormatBool(t.IsRefunded),
		strconv.FormatBool(t.IsStandalone),
		strconv.FormatBool(t.IsVoided),
		strconv.FormatInt(t.Order.ID, 10),
		strconv.FormatInt(t.Owner, 10),
		strconv.FormatBool(t.Pending),
		t.SourceData.Pan,
		t.SourceData.SubType,
		t.SourceData.Type,
		strconv.FormatBool(t.Success),
	} {
		b.WriteString(field)
	}
	return b.String()
}

// VerifyHMAC checks the hex signature Paymob sends alongside the callback
// against an HMAC-SHA512 of the signed transaction fields.
func (c *Client) VerifyHMAC(t *TransactionCallback, signature string) bool {
	return VerifyHMAC(c.cfg.HMACSecret, t, signature)
}

// VerifyHMAC checks a callback signature against the given shared secret.
func VerifyHMAC(secret string, t *TransactionCallback, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(t.signaturePayload()))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
