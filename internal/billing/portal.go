// Package billing opens Stripe customer portal sessions for signed-in
// users.
package billing

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const DefaultReturnURL = "http://localhost:8080/subscription"

var (
	ErrNotConfigured    = errors.New("server configuration incomplete: Stripe API key not found")
	ErrCustomerNotFound = errors.New("no subscription found for this user")
)

// Portal creates billing portal sessions.
type Portal interface {
	// CreateSession returns the URL of a portal session for the
	// customer registered under email.
	CreateSession(ctx context.Context, email, returnURL string) (string, error)
}

type StripePortal struct {
	api *client.API
}

// NewStripePortal returns a portal backed by the Stripe API. With an
// empty secretKey every call fails with ErrNotConfigured.
func NewStripePortal(secretKey string) *StripePortal {
	if secretKey == "" {
		return &StripePortal{}
	}
	return &StripePortal{api: client.New(secretKey, nil)}
}

func (p *StripePortal) CreateSession(ctx context.Context, email, returnURL string) (string, error) {
	if p.api == nil {
		return "", ErrNotConfigured
	}

	listParams := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	listParams.Limit = stripe.Int64(1)
	listParams.Context = ctx

	iter := p.api.Customers.List(listParams)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return "", err
		}
		return "", ErrCustomerNotFound
	}
	customer := iter.Customer()

	sessionParams := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customer.ID),
		ReturnURL: stripe.String(returnURL),
	}
	sessionParams.Context = ctx

	session, err := p.api.BillingPortalSessions.New(sessionParams)
	if err != nil {
		return "", err
	}
	return session.URL, nil
}
