package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

type LineItem struct {
	Name            string
	Category        string
	Image           string
	UnitAmountCents int64
	Quantity        int64
}

type SessionInput struct {
	LineItems     []LineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

type Session struct {
	ID  string
	URL string
}

// Client wraps the Stripe SDK behind the one call the checkout flow needs.
type Client struct {
	api *client.API
}

func New(apiKey string) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{api: api}
}

func (c *Client) CreateSession(ctx context.Context, in SessionInput) (Session, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.LineItems))
	for _, li := range in.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Category != "" {
			product.Metadata = map[string]string{"category": li.Category}
		}
		if li.Image != "" {
			product.Images = []*string{stripe.String(li.Image)}
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(li.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(in.Currency),
				UnitAmount:  stripe.Int64(li.UnitAmountCents),
				ProductData: product,
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems:  items,
	}
	params.Context = ctx
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}
