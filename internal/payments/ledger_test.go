package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/usage"
)

type fakeCheckout struct {
	n   atomic.Int64
	err error
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if f.err != nil {
		return CheckoutSession{}, f.err
	}
	id := fmt.Sprintf("cs_test_%d", f.n.Add(1))
	return CheckoutSession{SessionID: id, RedirectURL: "https://checkout.example/" + id}, nil
}

// countingEntitlements wraps the real usage service and counts grants.
// afterGrant, when set, runs once the grant has been applied and before the
// ledger marks the intent as granted.
type countingEntitlements struct {
	svc        *usage.Service
	grants     atomic.Int64
	fail       atomic.Bool
	afterGrant func()
}

func (c *countingEntitlements) Grant(ctx context.Context, userID string, grant usage.Grant) (usage.Entitlement, error) {
	if c.fail.Load() {
		return usage.Entitlement{}, errors.New("store unavailable")
	}
	c.grants.Add(1)
	ent, err := c.svc.Grant(ctx, userID, grant)
	if err == nil && c.afterGrant != nil {
		hook := c.afterGrant
		c.afterGrant = nil
		hook()
	}
	return ent, err
}

// countingRepo counts successful status transitions. beforeClaim, when set,
// runs once ahead of the next grant claim.
type countingRepo struct {
	*MemoryRepo
	transitions atomic.Int64
	beforeClaim func()
}

func (r *countingRepo) ClaimGrant(ctx context.Context, id string, at time.Time, lease time.Duration) error {
	if r.beforeClaim != nil {
		hook := r.beforeClaim
		r.beforeClaim = nil
		hook()
	}
	return r.MemoryRepo.ClaimGrant(ctx, id, at, lease)
}

func (r *countingRepo) Transition(ctx context.Context, id string, t Transition) (Intent, error) {
	intent, err := r.MemoryRepo.Transition(ctx, id, t)
	if err == nil {
		r.transitions.Add(1)
	}
	return intent, err
}

type ledgerFixture struct {
	ledger       *Ledger
	repo         *countingRepo
	usage        *usage.Service
	entitlements *countingEntitlements
	now          time.Time
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		repo:  &countingRepo{MemoryRepo: NewMemoryRepo()},
		usage: usage.NewService(nil),
		now:   time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	f.entitlements = &countingEntitlements{svc: f.usage}
	f.ledger = NewLedger(LedgerConfig{
		Catalog:      DefaultCatalog(),
		Repo:         f.repo,
		Checkout:     &fakeCheckout{},
		Entitlements: f.entitlements,
		SuccessURL:   "http://ui/payment/success",
		CancelURL:    "http://ui/pricing",
		Now:          func() time.Time { return f.now },
	})
	return f
}

func completion(sessionID string) Event {
	return Event{ID: "evt_" + sessionID, Type: EventCheckoutCompleted, SessionID: sessionID, ExternalPaymentID: "pi_" + sessionID, ExternalCustomerID: "cus_1"}
}

func TestCreateIntentPro(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{ClientIP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, ref.IntentID)
	assert.NotEmpty(t, ref.RedirectURL)

	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, intent.Status)
	assert.EqualValues(t, 2999, intent.AmountCents)
	assert.Equal(t, ref.SessionID, intent.SessionID)
	assert.Nil(t, intent.CompletedAt)

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, usage.PlanFree, ent.Plan)
	assert.Equal(t, 0, ent.DownloadsRemaining)
}

func TestCreateIntentRejectsUnknownPlan(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.ledger.CreateIntent(context.Background(), "user-1", "platinum", Meta{})
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestCreateIntentCheckoutFailureRecordsNothing(t *testing.T) {
	f := newLedgerFixture(t)
	f.ledger.checkout = &fakeCheckout{err: errors.New("provider down")}
	_, err := f.ledger.CreateIntent(context.Background(), "user-1", "single", Meta{})
	require.Error(t, err)
	assert.Empty(t, f.repo.intents)
}

func TestReconcileGrantsExactlyOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))

	assert.EqualValues(t, 1, f.entitlements.grants.Load())
	assert.EqualValues(t, 1, f.repo.transitions.Load())

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, PlanPro, ent.Plan)
	assert.Equal(t, 5, ent.DownloadsRemaining)
	assert.Nil(t, ent.ExpiresAt)

	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, intent.Status)
	assert.Equal(t, "pi_"+ref.SessionID, intent.ExternalPaymentID)
	require.NotNil(t, intent.CompletedAt)
	assert.True(t, intent.CompletedAt.Equal(f.now))
	assert.NotNil(t, intent.GrantedAt)
}

func TestReconcileReplayAfterConsumeDoesNotRestoreDownloads(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "single", Meta{})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))

	_, err = f.usage.Consume(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))
	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ent.DownloadsRemaining)
}

func TestReconcileRetriesGrantAfterCrash(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	f.entitlements.fail.Store(true)
	require.Error(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))

	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, intent.Status)
	assert.Nil(t, intent.GrantedAt)

	f.entitlements.fail.Store(false)

	// The failed delivery still holds the grant claim until it lapses.
	assert.ErrorIs(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)), ErrConflict)
	assert.EqualValues(t, 0, f.entitlements.grants.Load())

	f.now = f.now.Add(defaultGrantLease + time.Second)
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))
	assert.EqualValues(t, 1, f.entitlements.grants.Load())
	assert.EqualValues(t, 1, f.repo.transitions.Load())

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, ent.DownloadsRemaining)
}

func TestReconcileRedeliveryDuringGrantIsNoop(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	var redelivered error
	f.entitlements.afterGrant = func() {
		_, err := f.usage.Consume(ctx, "user-1")
		require.NoError(t, err)
		redelivered = f.ledger.Reconcile(ctx, completion(ref.SessionID))
	}
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))

	assert.ErrorIs(t, redelivered, ErrConflict)
	assert.EqualValues(t, 1, f.entitlements.grants.Load())
	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, ent.DownloadsRemaining)

	// Once granted, later replays are plain no-ops.
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))
	assert.EqualValues(t, 1, f.entitlements.grants.Load())
}

func TestReconcileRefundBeforeGrantSkipsGrant(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	f.repo.beforeClaim = func() {
		require.NoError(t, f.ledger.Reconcile(ctx, Event{Type: EventChargeRefunded, SessionID: ref.SessionID}))
	}
	assert.ErrorIs(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)), ErrConflict)

	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, intent.Status)
	assert.Nil(t, intent.GrantedAt)
	assert.EqualValues(t, 0, f.entitlements.grants.Load())

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, usage.PlanFree, ent.Plan)
}

func TestMemoryRepoClaimGrantLease(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, Intent{ID: "p1", SessionID: "cs_1", Status: StatusPending}))

	assert.ErrorIs(t, repo.ClaimGrant(ctx, "p1", at, time.Minute), ErrConflict, "pending intents are not claimable")
	_, err := repo.Transition(ctx, "p1", Transition{From: StatusPending, To: StatusCompleted, At: at})
	require.NoError(t, err)

	require.NoError(t, repo.ClaimGrant(ctx, "p1", at, time.Minute))
	assert.ErrorIs(t, repo.ClaimGrant(ctx, "p1", at.Add(30*time.Second), time.Minute), ErrConflict)
	require.NoError(t, repo.ClaimGrant(ctx, "p1", at.Add(2*time.Minute), time.Minute))

	_, err = repo.MarkGranted(ctx, "p1", at.Add(2*time.Minute))
	require.NoError(t, err)
	assert.ErrorIs(t, repo.ClaimGrant(ctx, "p1", at.Add(time.Hour), time.Minute), ErrConflict)
	assert.ErrorIs(t, repo.ClaimGrant(ctx, "missing", at, time.Minute), ErrNotFound)
}

func TestReconcileConcurrentDeliveries(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	const workers = 16
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.ledger.Reconcile(ctx, completion(ref.SessionID))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.EqualValues(t, 1, f.repo.transitions.Load())

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, PlanPro, ent.Plan)
	assert.Equal(t, 5, ent.DownloadsRemaining)
}

func TestReconcileUnknownSessionIsAcknowledged(t *testing.T) {
	f := newLedgerFixture(t)
	assert.NoError(t, f.ledger.Reconcile(context.Background(), completion("cs_missing")))
	assert.NoError(t, f.ledger.Reconcile(context.Background(), Event{Type: EventChargeRefunded}))
	assert.EqualValues(t, 0, f.entitlements.grants.Load())
}

func TestReconcileIgnoresUnknownEventTypes(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Reconcile(ctx, Event{Type: "invoice.paid", SessionID: ref.SessionID}))
	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, intent.Status)
}

func TestAnnualGrantExpiresAfterOneYear(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "annual", Meta{})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, PlanAnnual, ent.Plan)
	assert.Equal(t, 999, ent.DownloadsRemaining)
	require.NotNil(t, ent.ExpiresAt)
	assert.True(t, ent.ExpiresAt.Equal(f.now.AddDate(1, 0, 0)))
}

func TestFailedIntentNeverCompletes(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Reconcile(ctx, Event{Type: EventCheckoutExpired, SessionID: ref.SessionID}))
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))

	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, intent.Status)
	assert.NotNil(t, intent.FailedAt)
	assert.EqualValues(t, 0, f.entitlements.grants.Load())
}

func TestRefundByPaymentIDLeavesEntitlement(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "user-1", "pro", Meta{})
	require.NoError(t, err)

	// A refund for a pending intent is ignored.
	require.NoError(t, f.ledger.Reconcile(ctx, Event{Type: EventChargeRefunded, SessionID: ref.SessionID}))

	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))
	require.NoError(t, f.ledger.Reconcile(ctx, Event{Type: EventChargeRefunded, ExternalPaymentID: "pi_" + ref.SessionID}))

	intent, err := f.ledger.GetStatus(ctx, ref.IntentID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, intent.Status)
	assert.NotNil(t, intent.RefundedAt)

	ent, err := f.usage.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, ent.DownloadsRemaining)

	// Refunded intents do not re-grant on a late completion replay.
	require.NoError(t, f.ledger.Reconcile(ctx, completion(ref.SessionID)))
	assert.EqualValues(t, 1, f.entitlements.grants.Load())
}

func TestGetStatusMasksForeignIntents(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ref, err := f.ledger.CreateIntent(ctx, "owner", "single", Meta{})
	require.NoError(t, err)

	_, foreignErr := f.ledger.GetStatus(ctx, ref.IntentID, "intruder")
	_, missingErr := f.ledger.GetStatus(ctx, "does-not-exist", "intruder")
	assert.ErrorIs(t, foreignErr, ErrNotFound)
	assert.ErrorIs(t, missingErr, ErrNotFound)
	assert.Equal(t, foreignErr.Error(), missingErr.Error())
}

func TestMemoryRepoRejectsDuplicateSession(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, Intent{ID: "a", SessionID: "cs_1", Status: StatusPending}))
	assert.ErrorIs(t, repo.Create(ctx, Intent{ID: "b", SessionID: "cs_1", Status: StatusPending}), ErrDuplicateSession)
}

func TestCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	tests := []struct {
		key       string
		amount    int64
		downloads int
		dated     bool
	}{
		{PlanSingle, 999, 1, false},
		{PlanPro, 2999, 5, false},
		{PlanAnnual, 7999, 999, true},
	}
	for _, tt := range tests {
		plan, ok := catalog.Lookup(tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.amount, plan.AmountCents)
		assert.Equal(t, tt.downloads, plan.Downloads)
		assert.Equal(t, tt.dated, plan.ExpiresAt(time.Now()) != nil)
	}
	_, ok := catalog.Lookup("PRO ")
	assert.True(t, ok)
	assert.Len(t, catalog.All(), 3)
	assert.Equal(t, []string{"annual", "pro", "single"}, catalog.Keys())
}
