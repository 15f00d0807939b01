package users

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	mongostore "resume-builder/internal/shared/storage/mongo"
)

type userDoc struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password_hash,omitempty"`
	FirstName    string     `bson:"first_name"`
	LastName     string     `bson:"last_name"`
	Phone        string     `bson:"phone,omitempty"`
	GoogleSub    string     `bson:"google_sub,omitempty"`
	PictureURL   string     `bson:"picture_url,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty"`
}

func (d userDoc) toUser() User {
	return User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Phone:        d.Phone,
		GoogleSub:    d.GoogleSub,
		PictureURL:   d.PictureURL,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		LastLoginAt:  d.LastLoginAt,
	}
}

// MongoRepo stores accounts in the users collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(db *mongostore.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection(mongostore.ColUsers)}
}

func (r *MongoRepo) Create(ctx context.Context, user User) error {
	now := mongostore.Now()
	doc := userDoc{
		ID:           user.ID,
		Email:        NormalizeEmail(user.Email),
		PasswordHash: user.PasswordHash,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Phone:        user.Phone,
		GoogleSub:    user.GoogleSub,
		PictureURL:   user.PictureURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongostore.IsDuplicateKey(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("users/mongo: create: %w", err)
	}
	return nil
}

func (r *MongoRepo) Update(ctx context.Context, user User) error {
	set := bson.M{
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"phone":       user.Phone,
		"google_sub":  user.GoogleSub,
		"picture_url": user.PictureURL,
		"updated_at":  mongostore.Now(),
	}
	if user.PasswordHash != "" {
		set["password_hash"] = user.PasswordHash
	}
	if user.LastLoginAt != nil {
		set["last_login_at"] = user.LastLoginAt.UTC()
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("users/mongo: update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.findOne(ctx, bson.M{"_id": userID})
}

func (r *MongoRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M) (User, error) {
	var doc userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if mongostore.IsNoDocuments(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users/mongo: find: %w", err)
	}
	return doc.toUser(), nil
}
