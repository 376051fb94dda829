package payments

import (
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const EventCheckoutCompleted = "checkout.session.completed"

// VerifyEvent checks the Stripe-Signature header against the exact raw body.
// Any mismatch, missing header, or stale timestamp fails closed.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
