package payments

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongostore "resume-builder/internal/shared/storage/mongo"
)

type intentDoc struct {
	ID                 string     `bson:"_id"`
	UserID             string     `bson:"user_id"`
	Plan               string     `bson:"plan"`
	AmountCents        int64      `bson:"amount_cents"`
	Currency           string     `bson:"currency"`
	Status             string     `bson:"status"`
	SessionID          string     `bson:"session_id"`
	ExternalPaymentID  string     `bson:"external_payment_id,omitempty"`
	ExternalCustomerID string     `bson:"external_customer_id,omitempty"`
	ClientIP           string     `bson:"client_ip,omitempty"`
	UserAgent          string     `bson:"user_agent,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
	CompletedAt        *time.Time `bson:"completed_at,omitempty"`
	GrantedAt          *time.Time `bson:"granted_at,omitempty"`
	FailedAt           *time.Time `bson:"failed_at,omitempty"`
	RefundedAt         *time.Time `bson:"refunded_at,omitempty"`
	GrantClaimedAt     *time.Time `bson:"grant_claimed_at,omitempty"`
}

func (d intentDoc) toIntent() Intent {
	return Intent{
		ID:                 d.ID,
		UserID:             d.UserID,
		Plan:               d.Plan,
		AmountCents:        d.AmountCents,
		Currency:           d.Currency,
		Status:             Status(d.Status),
		SessionID:          d.SessionID,
		ExternalPaymentID:  d.ExternalPaymentID,
		ExternalCustomerID: d.ExternalCustomerID,
		ClientIP:           d.ClientIP,
		UserAgent:          d.UserAgent,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
		CompletedAt:        utcPtr(d.CompletedAt),
		GrantedAt:          utcPtr(d.GrantedAt),
		FailedAt:           utcPtr(d.FailedAt),
		RefundedAt:         utcPtr(d.RefundedAt),
		GrantClaimedAt:     utcPtr(d.GrantClaimedAt),
	}
}

// MongoRepo stores intents in the payments collection. The unique index on
// session_id enforces the 1:1 session mapping.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(db *mongostore.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection(mongostore.ColPayments)}
}

func (r *MongoRepo) Create(ctx context.Context, intent Intent) error {
	doc := intentDoc{
		ID:          intent.ID,
		UserID:      intent.UserID,
		Plan:        intent.Plan,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Status:      string(intent.Status),
		SessionID:   intent.SessionID,
		ClientIP:    intent.ClientIP,
		UserAgent:   intent.UserAgent,
		CreatedAt:   intent.CreatedAt,
		UpdatedAt:   intent.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongostore.IsDuplicateKey(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("payments/mongo: create: %w", err)
	}
	return nil
}

func (r *MongoRepo) GetByID(ctx context.Context, intentID string) (Intent, error) {
	return r.findOne(ctx, bson.M{"_id": intentID}, nil)
}

func (r *MongoRepo) GetBySession(ctx context.Context, sessionID string) (Intent, error) {
	return r.findOne(ctx, bson.M{"session_id": sessionID}, nil)
}

func (r *MongoRepo) GetByPaymentID(ctx context.Context, paymentID string) (Intent, error) {
	if paymentID == "" {
		return Intent{}, ErrNotFound
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, bson.M{"external_payment_id": paymentID}, opts)
}

// Transition uses FindOneAndUpdate filtered on the current status, so only
// one concurrent caller can match the document.
func (r *MongoRepo) Transition(ctx context.Context, intentID string, t Transition) (Intent, error) {
	stampField, err := stampColumnFor(t.To)
	if err != nil {
		return Intent{}, err
	}
	at := t.At.UTC()
	set := bson.M{
		"status":     string(t.To),
		"updated_at": at,
		stampField:   at,
	}
	if t.ExternalPaymentID != "" {
		set["external_payment_id"] = t.ExternalPaymentID
	}
	if t.ExternalCustomerID != "" {
		set["external_customer_id"] = t.ExternalCustomerID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc intentDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": intentID, "status": string(t.From)},
		bson.M{"$set": set},
		opts,
	).Decode(&doc)
	if err != nil {
		if mongostore.IsNoDocuments(err) {
			if _, getErr := r.GetByID(ctx, intentID); getErr != nil {
				return Intent{}, getErr
			}
			return Intent{}, ErrConflict
		}
		return Intent{}, fmt.Errorf("payments/mongo: transition: %w", err)
	}
	return doc.toIntent(), nil
}

func (r *MongoRepo) ClaimGrant(ctx context.Context, intentID string, at time.Time, lease time.Duration) error {
	at = at.UTC()
	filter := bson.M{
		"_id":        intentID,
		"status":     string(StatusCompleted),
		"granted_at": bson.M{"$exists": false},
		"$or": bson.A{
			bson.M{"grant_claimed_at": bson.M{"$exists": false}},
			bson.M{"grant_claimed_at": bson.M{"$lt": at.Add(-lease)}},
		},
	}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"grant_claimed_at": at, "updated_at": at}})
	if err != nil {
		return fmt.Errorf("payments/mongo: claim grant: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, intentID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *MongoRepo) MarkGranted(ctx context.Context, intentID string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": intentID, "granted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"granted_at": at.UTC(), "updated_at": at.UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("payments/mongo: mark granted: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, intentID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptionsBuilder) (Intent, error) {
	var doc intentDoc
	var res *mongo.SingleResult
	if opts != nil {
		res = r.col.FindOne(ctx, filter, opts)
	} else {
		res = r.col.FindOne(ctx, filter)
	}
	if err := res.Decode(&doc); err != nil {
		if mongostore.IsNoDocuments(err) {
			return Intent{}, ErrNotFound
		}
		return Intent{}, fmt.Errorf("payments/mongo: find: %w", err)
	}
	return doc.toIntent(), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var _ Repo = (*MongoRepo)(nil)
