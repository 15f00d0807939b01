// Package mongo holds the shared MongoDB connection and collection layout
// used by the document-store repositories.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	ColUsers        = "users"
	ColResumes      = "resumes"
	ColEntitlements = "entitlements"
	ColPayments     = "payments"
)

const defaultPingTimeout = 5 * time.Second

// Database wraps a connected client and the application database.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB and verifies connectivity.
func Connect(ctx context.Context, uri, database string) (*Database, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("MONGODB_URI is empty")
	}
	if strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("mongo database name is empty")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	d := &Database{client: client, db: client.Database(database)}
	if err := d.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return d, nil
}

// Collection returns a handle on the named collection.
func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Ping checks connectivity with a bounded timeout.
func (d *Database) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	return d.client.Ping(pingCtx, nil)
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Drop removes the whole database. Test helpers use it to discard scratch databases.
func (d *Database) Drop(ctx context.Context) error {
	return d.db.Drop(ctx)
}

// Name identifies the store in health output.
func (d *Database) Name() string { return "mongo" }

// Check implements the health checker contract.
func (d *Database) Check(ctx context.Context) error {
	return d.Ping(ctx)
}

// Migrate creates the indexes every collection relies on.
func (d *Database) Migrate(ctx context.Context) error {
	for col, models := range Indexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := d.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Indexes returns the index definitions for all collections. The unique
// session index is what makes one checkout session map to one payment.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ColUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		ColResumes: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ColPayments: {
			{
				Keys:    bson.D{{Key: "session_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "external_payment_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// IsNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func IsNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// Now returns the current time truncated to the millisecond precision BSON stores.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
