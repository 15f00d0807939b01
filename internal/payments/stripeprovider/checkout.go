// Package stripeprovider adapts Stripe Checkout and webhooks to the payment
// ledger.
package stripeprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"resume-builder/internal/payments"
)

// Checkout opens Stripe hosted checkout sessions.
type Checkout struct {
	client session.Client
}

// NewCheckout builds a Checkout against the live Stripe API.
func NewCheckout(secretKey string) (*Checkout, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required")
	}
	return newCheckoutWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend)), nil
}

func newCheckoutWithBackend(secretKey string, backend stripe.Backend) *Checkout {
	return &Checkout{client: session.Client{B: backend, Key: secretKey}}
}

// CreateCheckout creates a one-off payment session for the plan.
func (c *Checkout) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.IntentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Plan.Currency),
					UnitAmount: stripe.Int64(req.Plan.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Plan.Name),
						Description: stripe.String(req.Plan.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := c.client.New(params)
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("stripe checkout: %w", err)
	}
	return payments.CheckoutSession{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}

var _ payments.CheckoutInitiator = (*Checkout)(nil)
