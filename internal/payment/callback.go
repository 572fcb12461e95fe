package payment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Callback is the parsed form of an STK callback body. It is one of
// CallbackSuccess, CallbackFailure or CallbackMalformed.
type Callback interface {
	isCallback()
}

type CallbackSuccess struct {
	CheckoutRequestID string
	MerchantRequestID string
	ReceiptNumber     string
	Metadata          map[string]string
}

type CallbackFailure struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
}

type CallbackMalformed struct {
	Reason string
}

func (CallbackSuccess) isCallback()   {}
func (CallbackFailure) isCallback()   {}
func (CallbackMalformed) isCallback() {}

// Field matching in encoding/json is case-insensitive, so the tags below also
// accept the camel-cased variant (body/stkCallback/resultCode/checkoutRequestId).
type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string          `json:"MerchantRequestID"`
	CheckoutRequestID string          `json:"CheckoutRequestID"`
	ResultCode        json.RawMessage `json:"ResultCode"`
	ResultDesc        string          `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []struct {
			Name  string          `json:"Name"`
			Value json.RawMessage `json:"Value"`
		} `json:"Item"`
	} `json:"CallbackMetadata"`
}

// ParseCallback never fails: anything it cannot make sense of comes back as
// CallbackMalformed.
func ParseCallback(raw []byte) Callback {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return CallbackMalformed{Reason: "invalid json: " + err.Error()}
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return CallbackMalformed{Reason: "missing body.stkCallback"}
	}

	cb := env.Body.StkCallback
	id := strings.TrimSpace(cb.CheckoutRequestID)
	if id == "" {
		return CallbackMalformed{Reason: "missing checkoutRequestId"}
	}
	code, ok := parseResultCode(cb.ResultCode)
	if !ok {
		return CallbackMalformed{Reason: "missing or non-integer resultCode"}
	}

	if code != 0 {
		return CallbackFailure{
			CheckoutRequestID: id,
			MerchantRequestID: cb.MerchantRequestID,
			ResultCode:        code,
			ResultDesc:        cb.ResultDesc,
		}
	}

	meta := map[string]string{}
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name != "" {
				meta[item.Name] = rawScalar(item.Value)
			}
		}
	}
	return CallbackSuccess{
		CheckoutRequestID: id,
		MerchantRequestID: cb.MerchantRequestID,
		ReceiptNumber:     meta["MpesaReceiptNumber"],
		Metadata:          meta,
	}
}

// ParseTimeout extracts the CheckoutRequestID from a timeout notification,
// either {"CheckoutRequestID": "..."} or a full callback body.
func ParseTimeout(raw []byte) (string, bool) {
	var flat struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return "", false
	}
	if id := strings.TrimSpace(flat.CheckoutRequestID); id != "" {
		return id, true
	}

	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Body == nil || env.Body.StkCallback == nil {
		return "", false
	}
	id := strings.TrimSpace(env.Body.StkCallback.CheckoutRequestID)
	return id, id != ""
}

func parseResultCode(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return code, true
}

func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
