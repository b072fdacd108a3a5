package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/domain"
)

var (
	ErrNotConfigured = errors.New("billing is not configured")
	ErrNoCustomer    = errors.New("no billing customer for user")
)

type CustomerStore interface {
	EnsureUserMetadata(ctx context.Context, userID, email string, now time.Time) (domain.UserMetadata, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

// Service creates hosted Stripe sessions and returns the URL to redirect to.
type Service struct {
	api     *client.API
	priceID string
	appURL  string
	store   CustomerStore
	log     *slog.Logger
}

func New(apiKey, priceID, appURL string, store CustomerStore, log *slog.Logger, backends *stripe.Backends) *Service {
	return &Service{
		api:     client.New(apiKey, backends),
		priceID: priceID,
		appURL:  strings.TrimRight(appURL, "/"),
		store:   store,
		log:     log,
	}
}

// CreateCheckoutSession starts a subscription checkout for the pro plan.
func (s *Service) CreateCheckoutSession(ctx context.Context, user domain.User) (string, error) {
	if user.ID == "" {
		return "", auth.ErrAuthRequired
	}
	if s.priceID == "" {
		return "", ErrNotConfigured
	}

	customerID, err := s.customerID(ctx, user)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(s.priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(user.ID),
		SuccessURL:        stripe.String(s.appURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.appURL + "/billing/canceled"),
	}
	params.Context = ctx

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	s.log.InfoContext(ctx, "Checkout session is created",
		"userID", user.ID,
		"sessionID", session.ID)

	return session.URL, nil
}

// CreatePortalSession opens the customer portal for an existing customer.
func (s *Service) CreatePortalSession(ctx context.Context, user domain.User) (string, error) {
	if user.ID == "" {
		return "", auth.ErrAuthRequired
	}

	meta, err := s.store.EnsureUserMetadata(ctx, user.ID, user.Email, time.Now())
	if err != nil {
		return "", fmt.Errorf("ensure user metadata: %w", err)
	}
	if meta.StripeCustomerID == nil || *meta.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  meta.StripeCustomerID,
		ReturnURL: stripe.String(s.appURL + "/"),
	}
	params.Context = ctx

	session, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}

	return session.URL, nil
}

func (s *Service) customerID(ctx context.Context, user domain.User) (string, error) {
	meta, err := s.store.EnsureUserMetadata(ctx, user.ID, user.Email, time.Now())
	if err != nil {
		return "", fmt.Errorf("ensure user metadata: %w", err)
	}
	if meta.StripeCustomerID != nil && *meta.StripeCustomerID != "" {
		return *meta.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	if user.Email != "" {
		params.Email = stripe.String(user.Email)
	}
	params.AddMetadata("user_id", user.ID)
	params.Context = ctx

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}

	if err = s.store.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		return "", fmt.Errorf("set stripe customer id: %w", err)
	}

	return customer.ID, nil
}
