package billing

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Intent is a one-time payment the client confirms with the secret.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// Subscription is a recurring plan; the secret confirms its first invoice.
type Subscription struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

// Provider abstracts the payment processor so handlers and tests do not
// depend on the Stripe SDK directly.
type Provider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, email, purchaseID string) (*Intent, error)
	CreateSubscription(ctx context.Context, priceID, email, purchaseID string) (*Subscription, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeProvider implements Provider with the Stripe API.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}
}

// CreateIntent opens a payment intent tagged with the purchase id so the
// webhook can match the payment back to a purchase.
func (p *StripeProvider) CreateIntent(ctx context.Context, amountCents int64, currency, email, purchaseID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:       stripe.Params{Context: ctx},
		Amount:       stripe.Int64(amountCents),
		Currency:     stripe.String(currency),
		ReceiptEmail: stripe.String(email),
	}
	params.AddMetadata("purchase_id", purchaseID)
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

// CreateSubscription creates a customer and an incomplete subscription whose
// first invoice the client confirms with the returned secret.
func (p *StripeProvider) CreateSubscription(ctx context.Context, priceID, email, purchaseID string) (*Subscription, error) {
	custParams := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	custParams.AddMetadata("purchase_id", purchaseID)
	cust, err := p.api.Customers.New(custParams)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	subParams := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(cust.ID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	subParams.AddMetadata("purchase_id", purchaseID)
	subParams.AddExpand("latest_invoice.confirmation_secret")
	sub, err := p.api.Subscriptions.New(subParams)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	out := &Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		out.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return out, nil
}

func (p *StripeProvider) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := p.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}
