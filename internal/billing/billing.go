// Package billing sells factory subscription plans through Stripe Checkout
// and keeps factory_subscriptions in sync from Stripe webhooks.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	StatusActive   = "active"
	StatusCanceled = "canceled"

	metadataFactoryID = "factory_id"
	metadataPlanID    = "plan_id"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanNotPurchasable   = errors.New("plan is not purchasable")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrInvalidEvent         = errors.New("invalid webhook event")
)

// CheckoutSessions creates Stripe Checkout sessions
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Repository is the persistence the service needs
type Repository interface {
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	UpsertSubscription(ctx context.Context, sub Subscription) error
	UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) (bool, error)
}

// Config holds redirect targets and the webhook secret
type Config struct {
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type Service struct {
	sessions CheckoutSessions
	repo     Repository
	cfg      Config
	logger   *slog.Logger
}

func NewService(sessions CheckoutSessions, repo Repository, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		sessions: sessions,
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateCheckout starts a subscription checkout for a factory and returns
// the hosted payment page URL
func (s *Service) CreateCheckout(ctx context.Context, factoryID, email, planID string) (string, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return "", err
	}
	if !plan.IsActive || plan.StripePriceID == "" {
		return "", ErrPlanNotPurchasable
	}

	metadata := map[string]string{
		metadataFactoryID: factoryID,
		metadataPlanID:    plan.ID,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(factoryID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.Context = ctx
	params.Metadata = metadata
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("Checkout session created",
		slog.String("factory_id", factoryID),
		slog.String("plan_id", plan.ID),
		slog.String("session_id", sess.ID),
	)
	return sess.URL, nil
}

// HandleWebhook verifies and applies a Stripe event
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		return s.activate(ctx, &sess)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		status := string(sub.Status)
		if event.Type == "customer.subscription.deleted" {
			status = StatusCanceled
		}
		found, err := s.repo.UpdateStatus(ctx, sub.ID, status)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Warn("Subscription event for unknown subscription",
				slog.String("subscription_id", sub.ID),
				slog.String("event_type", string(event.Type)),
			)
		}
		return nil

	default:
		s.logger.Debug("Ignoring Stripe event", slog.String("event_type", string(event.Type)))
		return nil
	}
}

func (s *Service) activate(ctx context.Context, sess *stripe.CheckoutSession) error {
	factoryID := sess.ClientReferenceID
	if factoryID == "" {
		factoryID = sess.Metadata[metadataFactoryID]
	}
	planID := sess.Metadata[metadataPlanID]
	if factoryID == "" || planID == "" {
		return fmt.Errorf("%w: session %s missing factory or plan", ErrInvalidEvent, sess.ID)
	}

	sub := Subscription{
		FactoryID: factoryID,
		PlanID:    planID,
		Status:    StatusActive,
	}
	if sess.Customer != nil {
		sub.StripeCustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		sub.StripeSubscriptionID = sess.Subscription.ID
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Factory subscription activated",
		slog.String("factory_id", factoryID),
		slog.String("plan_id", planID),
	)
	return nil
}
