package statestore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/types"
)

// DefaultMongoCollection is the collection cache entries are kept in.
const DefaultMongoCollection = "match_cache"

// MongoCache implements MatchCache on a MongoDB collection, keyed by normalized_name.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoCache connects to uri and uses database.collection for entries.
func NewMongoCache(ctx context.Context, uri, database, collection string) (*MongoCache, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to connect match cache: %w", err))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to ping match cache: %w", err))
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "normalized_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to create match cache index: %w", err))
	}

	return &MongoCache{client: client, coll: coll}, nil
}

// GetMatch implements MatchCache.
func (c *MongoCache) GetMatch(ctx context.Context, normalizedName string) (*types.MatchCacheEntry, error) {
	var entry types.MatchCacheEntry
	err := c.coll.FindOne(ctx, bson.M{"normalized_name": normalizedName}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to query match cache: %w", err))
	}
	return &entry, nil
}

// PutMatch implements MatchCache with an upsert.
func (c *MongoCache) PutMatch(ctx context.Context, entry *types.MatchCacheEntry) error {
	doc := *entry
	doc.MatchedVendors = nonNil(doc.MatchedVendors)
	doc.MatchedProducts = nonNil(doc.MatchedProducts)
	if doc.LastUpdated.IsZero() {
		doc.LastUpdated = time.Now().UTC()
	}

	filter := bson.M{"normalized_name": doc.NormalizedName}
	update := bson.M{"$set": doc}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// a concurrent upsert inserted first; the retry takes the update path
		_, err = c.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	}
	if err != nil {
		return errors.ClassifyStoreError(fmt.Errorf("failed to upsert match cache entry: %w", err))
	}
	return nil
}

// CountMatches implements MatchCache.
func (c *MongoCache) CountMatches(ctx context.Context) (int, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.ClassifyStoreError(fmt.Errorf("failed to count match cache: %w", err))
	}
	return int(n), nil
}

// ListMatches implements MatchCache.
func (c *MongoCache) ListMatches(ctx context.Context, limit int) ([]*types.MatchCacheEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_updated", Value: -1}, {Key: "normalized_name", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 0})

	cur, err := c.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to list match cache: %w", err))
	}

	var entries []*types.MatchCacheEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to decode match cache: %w", err))
	}
	return entries, nil
}

// Close implements MatchCache.
func (c *MongoCache) Close() error {
	return c.client.Disconnect(context.Background())
}
