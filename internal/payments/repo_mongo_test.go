package payments

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/shared/storage/mongo/mongotest"
	"resume-builder/internal/usage"
)

func pendingIntent(id, session string, at time.Time) Intent {
	return Intent{
		ID:          id,
		UserID:      "user-1",
		Plan:        PlanPro,
		AmountCents: 2999,
		Currency:    "usd",
		Status:      StatusPending,
		SessionID:   session,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestMongoRepoRejectsDuplicateSession(t *testing.T) {
	repo := NewMongoRepo(mongotest.Open(t))
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, pendingIntent("p1", "cs_1", at)))
	assert.ErrorIs(t, repo.Create(ctx, pendingIntent("p2", "cs_1", at)), ErrDuplicateSession)

	got, err := repo.GetBySession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestMongoRepoTransitionGuardedByStatus(t *testing.T) {
	repo := NewMongoRepo(mongotest.Open(t))
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, pendingIntent("p1", "cs_1", at)))

	done := Transition{From: StatusPending, To: StatusCompleted, At: at, ExternalPaymentID: "pi_1"}
	intent, err := repo.Transition(ctx, "p1", done)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, intent.Status)
	require.NotNil(t, intent.CompletedAt)
	assert.True(t, intent.CompletedAt.Equal(at))

	_, err = repo.Transition(ctx, "p1", done)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = repo.Transition(ctx, "missing", done)
	assert.ErrorIs(t, err, ErrNotFound)

	byPayment, err := repo.GetByPaymentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "p1", byPayment.ID)
}

func TestMongoRepoConcurrentTransitionsHaveOneWinner(t *testing.T) {
	repo := NewMongoRepo(mongotest.Open(t))
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, pendingIntent("p1", "cs_1", at)))

	var wins, conflicts atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Transition(ctx, "p1", Transition{From: StatusPending, To: StatusCompleted, At: at})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 7, conflicts.Load())
}

func TestMongoRepoGrantClaimAndMarkOnce(t *testing.T) {
	repo := NewMongoRepo(mongotest.Open(t))
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, pendingIntent("p1", "cs_1", at)))

	assert.ErrorIs(t, repo.ClaimGrant(ctx, "p1", at, time.Minute), ErrConflict, "pending intents are not claimable")
	_, err := repo.Transition(ctx, "p1", Transition{From: StatusPending, To: StatusCompleted, At: at})
	require.NoError(t, err)

	require.NoError(t, repo.ClaimGrant(ctx, "p1", at, time.Minute))
	assert.ErrorIs(t, repo.ClaimGrant(ctx, "p1", at.Add(30*time.Second), time.Minute), ErrConflict)
	require.NoError(t, repo.ClaimGrant(ctx, "p1", at.Add(2*time.Minute), time.Minute), "a lapsed claim can be taken over")

	set, err := repo.MarkGranted(ctx, "p1", at.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, set)
	set, err = repo.MarkGranted(ctx, "p1", at.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, set)

	assert.ErrorIs(t, repo.ClaimGrant(ctx, "p1", at.Add(time.Hour), time.Minute), ErrConflict)
	intent, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, intent.GrantedAt)
	assert.True(t, intent.GrantedAt.Equal(at.Add(2*time.Minute)))
}

func TestLedgerOnMongoGrantsOnce(t *testing.T) {
	database := mongotest.Open(t)
	ctx := context.Background()
	quota := usage.NewService(usage.NewMongoStore(database))
	ledger := NewLedger(LedgerConfig{
		Catalog:      DefaultCatalog(),
		Repo:         NewMongoRepo(database),
		Checkout:     &fakeCheckout{},
		Entitlements: quota,
	})

	ref, err := ledger.CreateIntent(ctx, "user-1", PlanPro, Meta{})
	require.NoError(t, err)
	require.NoError(t, ledger.Reconcile(ctx, completion(ref.SessionID)))

	_, err = quota.Consume(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, ledger.Reconcile(ctx, completion(ref.SessionID)))

	ent, err := quota.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, PlanPro, ent.Plan)
	assert.Equal(t, 4, ent.DownloadsRemaining)
}
