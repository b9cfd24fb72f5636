package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-channel-sync/config"
)

const (
	EventKindCheckoutCompleted = "checkout.session.completed"
	EventKindPaymentSucceeded  = "payment_intent.succeeded"
	EventKindPaymentFailed     = "payment_intent.payment_failed"
	EventKindDisputeCreated    = "charge.dispute.created"
)

// PaymentEvent is the parsed, processor-agnostic form of one webhook
// delivery.
type PaymentEvent struct {
	ID   string
	Kind string

	// Endpoint is the logical webhook endpoint the event arrived on; the
	// gateway fills it after signature verification.
	Endpoint string

	ProcessorRef string
	DisputeRef   string
	OrderNumber  string

	AmountCents int64
	Currency    string

	// PayerIdentity is the attribute the endpoint routing predicate
	// inspects (customer email when present, customer id otherwise).
	PayerIdentity string

	Reason string
}

func parsePaymentEvent(payload []byte) (*PaymentEvent, error) {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	var object struct {
		ID                string            `json:"id"`
		PaymentIntent     string            `json:"payment_intent"`
		ClientReferenceID string            `json:"client_reference_id"`
		AmountTotal       int64             `json:"amount_total"`
		Amount            int64             `json:"amount"`
		Currency          string            `json:"currency"`
		Customer          string            `json:"customer"`
		CustomerEmail     string            `json:"customer_email"`
		Reason            string            `json:"reason"`
		Metadata          map[string]string `json:"metadata"`
	}
	if len(envelope.Data.Object) > 0 {
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return nil, err
		}
	}

	event := &PaymentEvent{
		ID:       strings.TrimSpace(envelope.ID),
		Kind:     strings.TrimSpace(envelope.Type),
		Currency: strings.ToUpper(strings.TrimSpace(object.Currency)),
		Reason:   strings.TrimSpace(object.Reason),
	}

	event.PayerIdentity = strings.TrimSpace(object.CustomerEmail)
	if event.PayerIdentity == "" {
		event.PayerIdentity = strings.TrimSpace(object.Customer)
	}

	event.OrderNumber = strings.TrimSpace(object.ClientReferenceID)
	if event.OrderNumber == "" {
		event.OrderNumber = strings.TrimSpace(object.Metadata["order_number"])
	}

	switch event.Kind {
	case EventKindCheckoutCompleted:
		event.ProcessorRef = strings.TrimSpace(object.PaymentIntent)
		if event.ProcessorRef == "" {
			event.ProcessorRef = strings.TrimSpace(object.ID)
		}
		event.AmountCents = object.AmountTotal
	case EventKindDisputeCreated:
		event.DisputeRef = strings.TrimSpace(object.ID)
		event.ProcessorRef = strings.TrimSpace(object.PaymentIntent)
		event.AmountCents = object.Amount
	default:
		event.ProcessorRef = strings.TrimSpace(object.ID)
		event.AmountCents = object.Amount
	}

	return event, nil
}

// verifyEventSignature checks the processor's timestamped HMAC-SHA256
// signature header ("t=<unix>,v1=<hex>"). Multiple v1 entries are accepted if
// any of them matches, allowing secret rotation windows.
func verifyEventSignature(payload []byte, signatureHeader, secret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	if toleranceSeconds <= 0 {
		toleranceSeconds = 300
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	signedPayload := []byte(ts + "." + string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}
	return false
}

// routeAllows is the pure routing predicate for one endpoint: an allow-list
// endpoint processes only listed payer identities, a deny-list endpoint
// processes everything except them.
func routeAllows(endpoint config.WebhookEndpointConfig, payerIdentity string) bool {
	switch endpoint.RouteMode {
	case config.RouteModeAllow:
		return identityListed(endpoint.RouteIdentities, payerIdentity)
	case config.RouteModeDeny:
		return !identityListed(endpoint.RouteIdentities, payerIdentity)
	default:
		return true
	}
}

func identityListed(identities []string, payerIdentity string) bool {
	payerIdentity = strings.ToLower(strings.TrimSpace(payerIdentity))
	for _, identity := range identities {
		if strings.ToLower(strings.TrimSpace(identity)) == payerIdentity {
			return true
		}
	}
	return false
}
