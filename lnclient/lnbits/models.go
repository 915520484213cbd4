package lnbits

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type createInvoiceRequest struct {
	Out     bool   `json:"out"`
	Amount  uint64 `json:"amount"`
	Memo    string `json:"memo"`
	Expiry  int64  `json:"expiry,omitempty"`
	Webhook string `json:"webhook,omitempty"`
}

type payInvoiceRequest struct {
	Out    bool   `json:"out"`
	Bolt11 string `json:"bolt11"`
	Amount uint64 `json:"amount,omitempty"`
}

type paymentResponse struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	// newer releases renamed payment_request
	Bolt11     string `json:"bolt11"`
	CheckingID string `json:"checking_id"`
}

func (r *paymentResponse) bolt11() string {
	if r.PaymentRequest != "" {
		return r.PaymentRequest
	}
	return r.Bolt11
}

type paymentDetails struct {
	Status      string       `json:"status"`
	Pending     *bool        `json:"pending"`
	Amount      int64        `json:"amount"`
	Fee         int64        `json:"fee"`
	Memo        string       `json:"memo"`
	Bolt11      string       `json:"bolt11"`
	Preimage    string       `json:"preimage"`
	PaymentHash string       `json:"payment_hash"`
	Time        flexibleTime `json:"time"`
	Expiry      flexibleTime `json:"expiry"`
}

type paymentStatusResponse struct {
	Paid     bool            `json:"paid"`
	Preimage string          `json:"preimage"`
	Details  *paymentDetails `json:"details"`
}

// state normalizes the status of old releases (pending flag) and new ones
// (status string) to success, pending or failed.
func (r *paymentStatusResponse) state() string {
	if r.Paid {
		return "success"
	}
	if r.Details == nil {
		return "pending"
	}
	switch r.Details.Status {
	case "success", "pending", "failed":
		return r.Details.Status
	}
	if r.Details.Pending != nil && !*r.Details.Pending {
		return "failed"
	}
	return "pending"
}

type walletResponse struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// flexibleTime accepts unix seconds as a number or string, and ISO 8601
// timestamps with or without a zone.
type flexibleTime struct {
	time.Time
}

func (t *flexibleTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		t.Time = time.Unix(int64(v), 0)
		return nil
	case string:
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			t.Time = time.Unix(int64(secs), 0)
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				t.Time = parsed
				return nil
			}
		}
	}
	return &json.UnsupportedValueError{Str: string(data)}
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
