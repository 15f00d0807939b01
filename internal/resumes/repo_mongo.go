package resumes

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongostore "resume-builder/internal/shared/storage/mongo"
	"resume-builder/resume/model"
)

type scoresDoc struct {
	ATSScore        int       `bson:"ats_score"`
	ContentScore    float64   `bson:"content_score"`
	Recommendations []string  `bson:"recommendations"`
	ScoredAt        time.Time `bson:"scored_at"`
}

type resumeDoc struct {
	ID            string        `bson:"_id"`
	UserID        string        `bson:"user_id"`
	Title         string        `bson:"title"`
	Content       model.Content `bson:"data"`
	Scores        *scoresDoc    `bson:"scores,omitempty"`
	DownloadCount int           `bson:"download_count"`
	LastPDFKey    string        `bson:"last_pdf_key,omitempty"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}

func (d resumeDoc) toResume() Resume {
	out := Resume{
		ID:            d.ID,
		UserID:        d.UserID,
		Title:         d.Title,
		Content:       d.Content.Normalize(),
		DownloadCount: d.DownloadCount,
		LastPDFKey:    d.LastPDFKey,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.Scores != nil {
		out.Scores = &Scores{
			ATSScore:        d.Scores.ATSScore,
			ContentScore:    d.Scores.ContentScore,
			Recommendations: d.Scores.Recommendations,
			ScoredAt:        d.Scores.ScoredAt.UTC(),
		}
	}
	return out
}

// MongoRepo stores resumes in the resumes collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(db *mongostore.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection(mongostore.ColResumes)}
}

func (r *MongoRepo) Create(ctx context.Context, resume Resume) error {
	doc := resumeDoc{
		ID:        resume.ID,
		UserID:    resume.UserID,
		Title:     resume.Title,
		Content:   resume.Content,
		CreatedAt: resume.CreatedAt,
		UpdatedAt: resume.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("resumes/mongo: create: %w", err)
	}
	return nil
}

func (r *MongoRepo) GetByID(ctx context.Context, userID, resumeID string) (Resume, error) {
	var doc resumeDoc
	if err := r.col.FindOne(ctx, ownedFilter(userID, resumeID)).Decode(&doc); err != nil {
		if mongostore.IsNoDocuments(err) {
			return Resume{}, ErrNotFound
		}
		return Resume{}, fmt.Errorf("resumes/mongo: get: %w", err)
	}
	return doc.toResume(), nil
}

func (r *MongoRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("resumes/mongo: list: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]Resume, 0, limit)
	for cur.Next(ctx) {
		var doc resumeDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("resumes/mongo: decode: %w", err)
		}
		out = append(out, doc.toResume())
	}
	return out, cur.Err()
}

func (r *MongoRepo) Update(ctx context.Context, resume Resume) error {
	return r.updateOne(ctx, resume.UserID, resume.ID, bson.M{"$set": bson.M{
		"title":      resume.Title,
		"data":       resume.Content,
		"updated_at": resume.UpdatedAt,
	}})
}

func (r *MongoRepo) Delete(ctx context.Context, userID, resumeID string) error {
	res, err := r.col.DeleteOne(ctx, ownedFilter(userID, resumeID))
	if err != nil {
		return fmt.Errorf("resumes/mongo: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) SaveScores(ctx context.Context, userID, resumeID string, scores Scores) error {
	return r.updateOne(ctx, userID, resumeID, bson.M{"$set": bson.M{
		"scores": scoresDoc{
			ATSScore:        scores.ATSScore,
			ContentScore:    scores.ContentScore,
			Recommendations: scores.Recommendations,
			ScoredAt:        scores.ScoredAt,
		},
	}})
}

func (r *MongoRepo) RecordExport(ctx context.Context, userID, resumeID, objectKey string) error {
	set := bson.M{"updated_at": mongostore.Now()}
	if objectKey != "" {
		set["last_pdf_key"] = objectKey
	}
	return r.updateOne(ctx, userID, resumeID, bson.M{
		"$inc": bson.M{"download_count": 1},
		"$set": set,
	})
}

func (r *MongoRepo) updateOne(ctx context.Context, userID, resumeID string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, ownedFilter(userID, resumeID), update)
	if err != nil {
		return fmt.Errorf("resumes/mongo: update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func ownedFilter(userID, resumeID string) bson.M {
	return bson.M{"_id": resumeID, "user_id": userID}
}

var _ Repo = (*MongoRepo)(nil)
