package stripeprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"resume-builder/internal/payments"
)

// Verifier authenticates Stripe webhook deliveries.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	return &Verifier{secret: secret}, nil
}

// Verify checks the Stripe-Signature header and maps the event onto the
// ledger's event shape. Any verification failure wraps ErrAuthenticity.
func (v *Verifier) Verify(payload []byte, signature string) (payments.Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payments.Event{}, fmt.Errorf("%w: %v", payments.ErrAuthenticity, err)
	}

	out := payments.Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return payments.Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = sess.ID
		if sess.PaymentIntent != nil {
			out.ExternalPaymentID = sess.PaymentIntent.ID
		}
		if sess.Customer != nil {
			out.ExternalCustomerID = sess.Customer.ID
		}
	case strings.HasPrefix(out.Type, "charge."):
		var charge stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
			return payments.Event{}, fmt.Errorf("decode charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			out.ExternalPaymentID = charge.PaymentIntent.ID
		}
		if charge.Customer != nil {
			out.ExternalCustomerID = charge.Customer.ID
		}
	}
	return out, nil
}
