package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const visitorsID = "visitors"

type counterDocument struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

// StatsRepository holds site-wide counters in the "stats" collection.
type StatsRepository struct {
	collection *mongo.Collection
}

func NewStatsRepository(db *mongo.Database) *StatsRepository {
	return &StatsRepository{
		collection: db.Collection("stats"),
	}
}

// IncrementVisitors adds one to the visit counter and returns the new total.
func (r *StatsRepository) IncrementVisitors(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc counterDocument
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": visitorsID}, bson.M{"$inc": bson.M{"count": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment visitors: %w", err)
	}
	return doc.Count, nil
}

func (r *StatsRepository) Visitors(ctx context.Context) (int64, error) {
	var doc counterDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": visitorsID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read visitors: %w", err)
	}
	return doc.Count, nil
}
