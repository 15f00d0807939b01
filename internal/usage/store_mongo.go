package usage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongostore "resume-builder/internal/shared/storage/mongo"
)

type entitlementDoc struct {
	UserID             string     `bson:"_id"`
	Plan               string     `bson:"plan"`
	DownloadsRemaining int        `bson:"downloads_remaining"`
	ExpiresAt          *time.Time `bson:"expires_at,omitempty"`
	ExternalCustomerID string     `bson:"external_customer_id,omitempty"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

func (d entitlementDoc) toEntitlement() Entitlement {
	e := Entitlement{
		UserID:             d.UserID,
		Plan:               d.Plan,
		DownloadsRemaining: d.DownloadsRemaining,
		ExternalCustomerID: d.ExternalCustomerID,
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
	if d.ExpiresAt != nil {
		t := d.ExpiresAt.UTC()
		e.ExpiresAt = &t
	}
	return e
}

type mongoStore struct {
	col *mongo.Collection
}

// NewMongoStore constructs a MongoDB-backed entitlement store.
func NewMongoStore(db *mongostore.Database) Store {
	return &mongoStore{col: db.Collection(mongostore.ColEntitlements)}
}

func (s *mongoStore) Get(ctx context.Context, userID string, now time.Time) (Entitlement, error) {
	var doc entitlementDoc
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"plan":                PlanFree,
			"downloads_remaining": 0,
			"updated_at":          now,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return Entitlement{}, fmt.Errorf("usage/mongo: get: %w", err)
	}
	return doc.toEntitlement(), nil
}

func (s *mongoStore) Grant(ctx context.Context, userID string, grant Grant, now time.Time) (Entitlement, error) {
	set := bson.M{
		"plan":                grant.Plan,
		"downloads_remaining": grant.Downloads,
		"updated_at":          now,
	}
	update := bson.M{"$set": set}
	if grant.ExpiresAt != nil {
		set["expires_at"] = grant.ExpiresAt.UTC()
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}
	if grant.ExternalCustomerID != "" {
		set["external_customer_id"] = grant.ExternalCustomerID
	}

	var doc entitlementDoc
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return Entitlement{}, fmt.Errorf("usage/mongo: grant: %w", err)
	}
	return doc.toEntitlement(), nil
}

// Consume decrements with a guarded update so concurrent exports cannot
// overspend.
func (s *mongoStore) Consume(ctx context.Context, userID string, now time.Time) (Entitlement, error) {
	filter := bson.M{
		"_id":                 userID,
		"downloads_remaining": bson.M{"$gt": 0},
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"downloads_remaining": -1},
		"$set": bson.M{"updated_at": now},
	}
	var doc entitlementDoc
	err := s.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toEntitlement(), nil
	}
	if !mongostore.IsNoDocuments(err) {
		return Entitlement{}, fmt.Errorf("usage/mongo: consume: %w", err)
	}

	current, getErr := s.Get(ctx, userID, now)
	if getErr != nil {
		return Entitlement{}, getErr
	}
	if current.Expired(now) {
		return Entitlement{}, ErrPlanExpired
	}
	return Entitlement{}, ErrLimitReached
}
