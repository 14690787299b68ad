package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepository stores one document per identity in the "users" collection.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

func (r *UserRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// Read returns (nil, nil) when uid has no document yet.
func (r *UserRepository) Read(ctx context.Context, uid string) (*models.UserDocument, error) {
	var doc models.UserDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user document: %w", err)
	}
	if doc.Progress == nil {
		doc.Progress = models.Progress{}
	}
	return &doc, nil
}

// Write stores doc under uid. With merge the given fields are set on the
// existing document and progress flags are merged key by key; without merge
// the document is replaced.
func (r *UserRepository) Write(ctx context.Context, uid string, doc *models.UserDocument, merge bool) error {
	doc.UID = uid
	filter := bson.M{"_id": uid}

	if !merge {
		_, err := r.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to replace user document: %w", err)
		}
		return nil
	}

	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": mergeFields(doc)}, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to merge user document: %w", err)
	}
	return nil
}

func mergeFields(doc *models.UserDocument) bson.M {
	set := bson.M{}
	if doc.DisplayName != "" {
		set["displayName"] = doc.DisplayName
	}
	if doc.Email != "" {
		set["email"] = doc.Email
	}
	if doc.CreatedAt != 0 {
		set["createdAt"] = doc.CreatedAt
	}
	for key, done := range doc.Progress {
		set["progress."+key] = done
	}
	if doc.QuizHistory != nil {
		set["quizHistory"] = doc.QuizHistory
	}
	return set
}

// UpdateFields sets dotted field paths on an existing document.
func (r *UserRepository) UpdateFields(ctx context.Context, uid string, fields map[string]any) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update user document: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to update user document %s: %w", uid, models.ErrNotFound)
	}
	return nil
}

// AppendToArray pushes value onto an array field. Identical values are appended again.
func (r *UserRepository) AppendToArray(ctx context.Context, uid, field string, value any) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$push": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to append to %s of %s: %w", field, uid, models.ErrNotFound)
	}
	return nil
}
