package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/analytics/internal/domain/analytics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAggregateRepository implements analytics.AggregateRepository with one
// document per calendar day, uniquely indexed on date.
type MongoAggregateRepository struct {
	coll *mongo.Collection
}

// NewMongoAggregateRepository creates a repository over the given collection
func NewMongoAggregateRepository(coll *mongo.Collection) *MongoAggregateRepository {
	return &MongoAggregateRepository{coll: coll}
}

// EnsureIndexes creates the unique date index
func (r *MongoAggregateRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_date"),
	})
	if err != nil {
		return fmt.Errorf("failed to create aggregate date index: %w", err)
	}
	return nil
}

// UpsertMany writes every aggregate in one unordered bulk write keyed by date.
// Derived fields are replaced with $set; a day is created on first write.
// When some operations fail the written count is returned with a *analytics.PartialWriteError.
func (r *MongoAggregateRepository) UpsertMany(ctx context.Context, aggs []analytics.DailyAggregate) (int, error) {
	if len(aggs) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(aggs))
	for _, a := range aggs {
		doc, err := toAggregateDocument(a)
		if err != nil {
			return 0, err
		}
		update := bson.M{
			"$set":         doc.derivedFields(),
			"$setOnInsert": bson.M{"createdAt": doc.RunID},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"date": doc.Date}).
			SetUpdate(update).
			SetUpsert(true))
	}

	opts := options.BulkWrite().SetOrdered(false)
	result, err := r.coll.BulkWrite(ctx, models, opts)
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
			failed := len(bwe.WriteErrors)
			return len(models) - failed, &analytics.PartialWriteError{
				Written: len(models) - failed,
				Failed:  failed,
				Cause:   err,
			}
		}
		return 0, fmt.Errorf("failed to upsert daily aggregates: %w", err)
	}

	return int(result.MatchedCount + result.UpsertedCount), nil
}

// FindRange returns the aggregates inside r ordered by date ascending
func (r *MongoAggregateRepository) FindRange(ctx context.Context, dr analytics.DateRange) ([]analytics.DailyAggregate, error) {
	filter := bson.M{"date": bson.M{"$gte": dr.From, "$lt": dr.EndExclusive()}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []aggregateDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode daily aggregates: %w", err)
	}

	aggs := make([]analytics.DailyAggregate, 0, len(docs))
	for _, d := range docs {
		a, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, a)
	}
	return aggs, nil
}

var _ analytics.AggregateRepository = (*MongoAggregateRepository)(nil)
