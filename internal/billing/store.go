package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/jobmatch-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Plan is a purchasable factory subscription tier
type Plan struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Price         int64          `db:"price" json:"price"`
	Currency      string         `db:"currency" json:"currency"`
	StripePriceID string         `db:"stripe_price_id" json:"-"`
	Features      pq.StringArray `db:"features" json:"features"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	SortOrder     int            `db:"sort_order" json:"sort_order"`
}

// Subscription is a factory's current plan state
type Subscription struct {
	FactoryID            string    `db:"factory_id" json:"factory_id"`
	PlanID               string    `db:"plan_id" json:"plan_id"`
	StripeCustomerID     string    `db:"stripe_customer_id" json:"-"`
	StripeSubscriptionID string    `db:"stripe_subscription_id" json:"-"`
	Status               string    `db:"status" json:"status"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Store persists plans and factory subscriptions
type Store struct {
	db *sqlx.DB
}

func NewStore(pg *postgresql.Client) *Store {
	return &Store{
		db: pg.GetDB(),
	}
}

const planColumns = `id, name, price, currency, COALESCE(stripe_price_id, '') AS stripe_price_id, features, is_active, sort_order`

// ListActivePlans returns the plans on sale in display order
func (s *Store) ListActivePlans(ctx context.Context) ([]Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE is_active ORDER BY sort_order ASC, id ASC`

	plans := []Plan{}
	if err := s.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// GetPlan loads one plan
func (s *Store) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	var plan Plan
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`

	if err := s.db.GetContext(ctx, &plan, query, planID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

// UpsertSubscription records the outcome of a completed checkout
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) error {
	query := `
		INSERT INTO factory_subscriptions (
			factory_id, plan_id, stripe_customer_id, stripe_subscription_id, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (factory_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			updated_at = now()
	`

	_, err := s.db.ExecContext(ctx, query,
		sub.FactoryID,
		sub.PlanID,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// UpdateStatus sets the status of the subscription with the given Stripe id.
// An unknown id is not an error: the webhook may race the checkout event.
func (s *Store) UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) (bool, error) {
	query := `
		UPDATE factory_subscriptions SET status = $2, updated_at = now()
		WHERE stripe_subscription_id = $1
	`

	res, err := s.db.ExecContext(ctx, query, stripeSubscriptionID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update subscription status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update subscription status: %w", err)
	}
	return n > 0, nil
}

// GetSubscription returns the factory's subscription
func (s *Store) GetSubscription(ctx context.Context, factoryID string) (*Subscription, error) {
	var sub Subscription
	query := `
		SELECT factory_id, plan_id, stripe_customer_id, stripe_subscription_id, status, updated_at
		FROM factory_subscriptions
		WHERE factory_id = $1
	`

	if err := s.db.GetContext(ctx, &sub, query, factoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}
