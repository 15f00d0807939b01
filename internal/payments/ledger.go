package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/usage"
)

// CheckoutInitiator opens a hosted checkout session with the provider.
type CheckoutInitiator interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// Entitlements applies plan grants to an account.
type Entitlements interface {
	Grant(ctx context.Context, userID string, grant usage.Grant) (usage.Entitlement, error)
}

// LedgerConfig wires a Ledger.
type LedgerConfig struct {
	Catalog      Catalog
	Repo         Repo
	Checkout     CheckoutInitiator
	Entitlements Entitlements
	SuccessURL   string
	CancelURL    string
	Now          func() time.Time
	// GrantLease is how long a grant claim blocks other deliveries of the
	// same intent. A claim older than this is treated as abandoned.
	GrantLease time.Duration
}

const defaultGrantLease = time.Minute

// Ledger drives payment intents through pending, completed, failed and
// refunded, and grants entitlements on completion.
type Ledger struct {
	catalog      Catalog
	repo         Repo
	checkout     CheckoutInitiator
	entitlements Entitlements
	successURL   string
	cancelURL    string
	now          func() time.Time
	grantLease   time.Duration
}

func NewLedger(cfg LedgerConfig) *Ledger {
	if cfg.Repo == nil {
		cfg.Repo = NewMemoryRepo()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GrantLease <= 0 {
		cfg.GrantLease = defaultGrantLease
	}
	return &Ledger{
		catalog:      cfg.Catalog,
		repo:         cfg.Repo,
		checkout:     cfg.Checkout,
		entitlements: cfg.Entitlements,
		successURL:   cfg.SuccessURL,
		cancelURL:    cfg.CancelURL,
		now:          cfg.Now,
		grantLease:   cfg.GrantLease,
	}
}

// Plans lists the purchasable plans.
func (l *Ledger) Plans() []Plan {
	return l.catalog.All()
}

// CreateIntent opens a checkout for plan and records a pending intent keyed
// by the returned session id. The owner's entitlement is not touched.
func (l *Ledger) CreateIntent(ctx context.Context, ownerID, planKey string, meta Meta) (IntentRef, error) {
	if strings.TrimSpace(ownerID) == "" {
		return IntentRef{}, fmt.Errorf("%w: owner required", ErrValidation)
	}
	plan, ok := l.catalog.Lookup(planKey)
	if !ok {
		return IntentRef{}, fmt.Errorf("%w: %q", ErrInvalidPlan, planKey)
	}
	if l.checkout == nil {
		return IntentRef{}, ErrCheckoutUnavailable
	}

	intentID := uuid.NewString()
	session, err := l.checkout.CreateCheckout(ctx, CheckoutRequest{
		IntentID:      intentID,
		Plan:          plan,
		SuccessURL:    l.successURL,
		CancelURL:     l.cancelURL,
		CustomerEmail: meta.Email,
		Metadata: map[string]string{
			"paymentId": intentID,
			"userId":    ownerID,
			"plan":      plan.Key,
		},
	})
	if err != nil {
		return IntentRef{}, fmt.Errorf("create checkout: %w", err)
	}
	if session.SessionID == "" {
		return IntentRef{}, errors.New("create checkout: empty session id")
	}

	now := l.clock()
	intent := Intent{
		ID:          intentID,
		UserID:      ownerID,
		Plan:        plan.Key,
		AmountCents: plan.AmountCents,
		Currency:    plan.Currency,
		Status:      StatusPending,
		SessionID:   session.SessionID,
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.repo.Create(ctx, intent); err != nil {
		return IntentRef{}, err
	}
	metrics.IncCheckoutsCreated()
	telemetry.Info("payments.intent.created", map[string]any{
		"payment_id": intentID,
		"user_id":    ownerID,
		"plan":       plan.Key,
		"amount":     plan.AmountCents,
	})
	return IntentRef{IntentID: intentID, SessionID: session.SessionID, RedirectURL: session.RedirectURL}, nil
}

// GetStatus returns the intent only to its owner. Missing and foreign ids
// yield the same ErrNotFound.
func (l *Ledger) GetStatus(ctx context.Context, intentID, ownerID string) (Intent, error) {
	if strings.TrimSpace(intentID) == "" || strings.TrimSpace(ownerID) == "" {
		return Intent{}, ErrNotFound
	}
	intent, err := l.repo.GetByID(ctx, intentID)
	if err != nil {
		return Intent{}, err
	}
	if intent.UserID != ownerID {
		return Intent{}, ErrNotFound
	}
	return intent, nil
}

// Reconcile applies an authenticated provider event. Unknown sessions and
// event types are acknowledged with a nil error. ErrConflict means another
// delivery won the race for the same intent.
func (l *Ledger) Reconcile(ctx context.Context, event Event) error {
	switch event.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded:
		return l.complete(ctx, event)
	case EventCheckoutExpired, EventAsyncPaymentFailed:
		return l.fail(ctx, event)
	case EventChargeRefunded:
		return l.refund(ctx, event)
	default:
		telemetry.Info("payments.reconcile.ignored_event", map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
		})
		return nil
	}
}

func (l *Ledger) complete(ctx context.Context, event Event) error {
	intent, found, err := l.lookup(ctx, event)
	if err != nil || !found {
		return err
	}

	switch intent.Status {
	case StatusPending:
		updated, err := l.repo.Transition(ctx, intent.ID, Transition{
			From:               StatusPending,
			To:                 StatusCompleted,
			At:                 l.clock(),
			ExternalPaymentID:  event.ExternalPaymentID,
			ExternalCustomerID: event.ExternalCustomerID,
		})
		if err != nil {
			return l.transitionFailed(intent.ID, event, err)
		}
		intent = updated
		metrics.IncPaymentsCompleted()
		logTransition(intent, StatusPending, StatusCompleted, event)
	case StatusCompleted:
		if intent.GrantedAt != nil {
			telemetry.Info("payments.reconcile.replay", map[string]any{
				"payment_id": intent.ID,
				"event_id":   event.ID,
			})
			return nil
		}
		// The status committed without the grant: either a grant is in
		// flight or its delivery died. The claim below tells them apart.
	default:
		telemetry.Warn("payments.reconcile.ignored_state", map[string]any{
			"payment_id": intent.ID,
			"status":     string(intent.Status),
			"event_type": event.Type,
		})
		return nil
	}

	// Only the holder of the grant claim applies the grant. The claim also
	// requires the intent to still be completed, so a refund that lands
	// first suppresses it.
	if err := l.repo.ClaimGrant(ctx, intent.ID, l.clock(), l.grantLease); err != nil {
		return l.transitionFailed(intent.ID, event, err)
	}
	return l.grant(ctx, intent)
}

// grant is an overwrite keyed on the intent. It runs only under a grant
// claim, so a replay re-applies it only after the previous claim lapsed.
func (l *Ledger) grant(ctx context.Context, intent Intent) error {
	plan, ok := l.catalog.Lookup(intent.Plan)
	if !ok {
		return fmt.Errorf("%w: intent %s references %q", ErrInvalidPlan, intent.ID, intent.Plan)
	}
	if l.entitlements == nil {
		return errors.New("entitlements not configured")
	}
	grantedFrom := l.clock()
	if intent.CompletedAt != nil {
		grantedFrom = *intent.CompletedAt
	}
	if _, err := l.entitlements.Grant(ctx, intent.UserID, usage.Grant{
		Plan:               plan.Key,
		Downloads:          plan.Downloads,
		ExpiresAt:          plan.ExpiresAt(grantedFrom),
		ExternalCustomerID: intent.ExternalCustomerID,
	}); err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	if _, err := l.repo.MarkGranted(ctx, intent.ID, l.clock()); err != nil {
		return fmt.Errorf("mark granted: %w", err)
	}
	telemetry.Info("payments.entitlement.granted", map[string]any{
		"payment_id": intent.ID,
		"user_id":    intent.UserID,
		"plan":       plan.Key,
		"downloads":  plan.Downloads,
	})
	return nil
}

func (l *Ledger) fail(ctx context.Context, event Event) error {
	intent, found, err := l.lookup(ctx, event)
	if err != nil || !found {
		return err
	}
	if intent.Status != StatusPending {
		return nil
	}
	updated, err := l.repo.Transition(ctx, intent.ID, Transition{From: StatusPending, To: StatusFailed, At: l.clock()})
	if err != nil {
		return l.transitionFailed(intent.ID, event, err)
	}
	metrics.IncPaymentsFailed()
	logTransition(updated, StatusPending, StatusFailed, event)
	return nil
}

func (l *Ledger) refund(ctx context.Context, event Event) error {
	intent, found, err := l.lookup(ctx, event)
	if err != nil || !found {
		return err
	}
	if intent.Status != StatusCompleted {
		return nil
	}
	updated, err := l.repo.Transition(ctx, intent.ID, Transition{From: StatusCompleted, To: StatusRefunded, At: l.clock()})
	if err != nil {
		return l.transitionFailed(intent.ID, event, err)
	}
	metrics.IncPaymentsRefunded()
	logTransition(updated, StatusCompleted, StatusRefunded, event)
	return nil
}

// lookup resolves the intent by session id, falling back to the external
// payment id for events (refunds) that carry no session.
func (l *Ledger) lookup(ctx context.Context, event Event) (Intent, bool, error) {
	var (
		intent Intent
		err    error
	)
	switch {
	case event.SessionID != "":
		intent, err = l.repo.GetBySession(ctx, event.SessionID)
	case event.ExternalPaymentID != "":
		intent, err = l.repo.GetByPaymentID(ctx, event.ExternalPaymentID)
	default:
		err = ErrNotFound
	}
	if errors.Is(err, ErrNotFound) {
		telemetry.Warn("payments.reconcile.unknown_session", map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"session_id": event.SessionID,
			"charge":     event.ExternalPaymentID,
		})
		return Intent{}, false, nil
	}
	if err != nil {
		return Intent{}, false, err
	}
	return intent, true, nil
}

func (l *Ledger) transitionFailed(intentID string, event Event, err error) error {
	if errors.Is(err, ErrConflict) {
		metrics.IncReconcileConflicts()
		telemetry.Warn("payments.reconcile.conflict", map[string]any{
			"payment_id": intentID,
			"event_id":   event.ID,
			"event_type": event.Type,
		})
	}
	return err
}

func logTransition(intent Intent, from, to Status, event Event) {
	telemetry.Info("payments.reconcile.transition", map[string]any{
		"payment_id":        intent.ID,
		"user_id":           intent.UserID,
		"status_transition": string(from) + "->" + string(to),
		"event_id":          event.ID,
	})
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}
