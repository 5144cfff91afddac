package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/giftpact/internal/payment/domain"
)

// Provider is the name recorded against events originating from Stripe.
const Provider = "stripe"

// signatureTolerance bounds how stale a signed timestamp may be before the
// delivery is rejected as a replay.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks a Stripe-Signature header against the payload. The
// header carries a signed timestamp and one or more v1 HMAC-SHA256 digests of
// "<timestamp>.<payload>".
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if secret == "" {
		return paymentdomain.ErrNotConfigured
	}

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return paymentdomain.ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			decoded, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, decoded)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return paymentdomain.ErrInvalidSignature
	}

	signedAt := time.Unix(timestamp, 0)
	if now.Sub(signedAt) > signatureTolerance || signedAt.Sub(now) > signatureTolerance {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, signature := range signatures {
		if hmac.Equal(expected, signature) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
			AmountTotal   int64  `json:"amount_total"`
			Metadata      struct {
				UserID         string `json:"user_id"`
				TransactionIDs string `json:"transaction_ids"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent maps a raw webhook payload to the provider-neutral event. For
// checkout.session.* events the object id is the session id; payment_intent
// events carry the intent id instead.
func ParseEvent(payload []byte) (paymentdomain.Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidPayload
	}
	if envelope.ID == "" || envelope.Type == "" {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidPayload
	}

	event := paymentdomain.Event{
		Provider:        Provider,
		ProviderEventID: envelope.ID,
		Type:            envelope.Type,
		PurchaseIDs:     envelope.Data.Object.Metadata.TransactionIDs,
		AmountTotal:     envelope.Data.Object.AmountTotal,
		CreatedAt:       time.Unix(envelope.Created, 0).UTC(),
	}
	if strings.HasPrefix(envelope.Type, "checkout.session.") {
		event.SessionID = envelope.Data.Object.ID
		event.PaymentIntent = envelope.Data.Object.PaymentIntent
	} else {
		event.PaymentIntent = envelope.Data.Object.ID
	}
	return event, nil
}
