package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type CredentialRepository struct {
	collection *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{
		collection: db.Collection("credentials"),
	}
}

func (r *CredentialRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create credential indexes: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Insert(ctx context.Context, cred *models.Credential) error {
	_, err := r.collection.InsertOne(ctx, cred)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to insert credential: %w", models.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) findOne(ctx context.Context, filter bson.M) (*models.Credential, error) {
	var cred models.Credential
	err := r.collection.FindOne(ctx, filter).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return &cred, nil
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *CredentialRepository) FindByID(ctx context.Context, uid string) (*models.Credential, error) {
	return r.findOne(ctx, bson.M{"_id": uid})
}

// FindByExternalID finds the credential a Google account is linked to.
func (r *CredentialRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error) {
	return r.findOne(ctx, bson.M{"externalId": externalID})
}

func (r *CredentialRepository) SetDisplayName(ctx context.Context, uid, displayName string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{"displayName": displayName}})
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// LinkExternal attaches an external account to an existing credential.
func (r *CredentialRepository) LinkExternal(ctx context.Context, uid, externalID string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{"externalId": externalID}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to link external account: %w", models.ErrDuplicate)
		}
		return fmt.Errorf("failed to link external account: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) TouchLogin(ctx context.Context, uid string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{"lastLoginAt": at.Unix()}})
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
