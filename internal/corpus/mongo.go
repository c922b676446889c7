package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/types"
)

// Corpus document fields.
const (
	fieldVendor  = "identifiers.vendor"
	fieldProduct = "identifiers.product"
	fieldFlat    = "cpes"
)

// matchProjection limits pattern queries to what scoring needs.
var matchProjection = bson.M{
	"_id":         0,
	"cve_id":      1,
	"identifiers": 1,
	"cpes":        1,
	"score":       1,
	"exploited":   1,
	"published":   1,
}

// MongoConfig locates the vulnerability collection.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoOpener connects a fresh client for every Open so workers never share a
// connection pool.
type MongoOpener struct {
	cfg    MongoConfig
	logger *slog.Logger
}

// NewMongoOpener creates an opener for cfg.
func NewMongoOpener(cfg MongoConfig, logger *slog.Logger) *MongoOpener {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &MongoOpener{cfg: cfg, logger: logger}
}

// Open implements Opener.
func (o *MongoOpener) Open(ctx context.Context) (Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(o.cfg.URI).
		SetConnectTimeout(o.cfg.ConnectTimeout))
	if err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to connect to corpus: %w", err))
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to ping corpus: %w", err))
	}

	o.logger.Debug("corpus connection opened",
		"database", o.cfg.Database,
		"collection", o.cfg.Collection)

	return &MongoStore{
		client: client,
		coll:   client.Database(o.cfg.Database).Collection(o.cfg.Collection),
	}, nil
}

// MongoStore is a Store backed by a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// FindByPatterns implements Store with a single $or query.
func (s *MongoStore) FindByPatterns(ctx context.Context, patterns []string) ([]types.VulnerabilityRecord, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	cur, err := s.coll.Find(ctx, patternFilter(patterns), options.Find().SetProjection(matchProjection))
	if err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("corpus pattern query failed: %w", err))
	}
	return decodeAll(ctx, cur)
}

// FindByEntity implements Store. published is stored in mixed BSON types, which
// the server orders by type before value, so sorting and the limit are applied
// after decoding.
func (s *MongoStore) FindByEntity(ctx context.Context, name string, limit int) ([]types.VulnerabilityRecord, error) {
	cur, err := s.coll.Find(ctx, entityFilter(name))
	if err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("corpus entity query failed: %w", err))
	}
	records, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, err
	}

	SortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// patternFilter matches any pattern against the structured vendor, the
// structured product or the flat identifiers, case-insensitively.
func patternFilter(patterns []string) bson.M {
	clauses := make(bson.A, 0, len(patterns)*3)
	for _, p := range patterns {
		re := primitive.Regex{Pattern: p, Options: "i"}
		clauses = append(clauses,
			bson.M{fieldVendor: re},
			bson.M{fieldProduct: re},
			bson.M{fieldFlat: re},
		)
	}
	return bson.M{"$or": clauses}
}

// entityFilter matches an exact vendor or product, or a flat identifier
// containing name.
func entityFilter(name string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{fieldVendor: name},
		bson.M{fieldProduct: name},
		bson.M{fieldFlat: primitive.Regex{Pattern: regexp.QuoteMeta(name)}},
	}}
}

// Ping implements Store.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.ClassifyStoreError(fmt.Errorf("corpus ping failed: %w", err))
	}
	return nil
}

// Close implements Store.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]types.VulnerabilityRecord, error) {
	var records []types.VulnerabilityRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to decode corpus records: %w", err))
	}
	return records, nil
}
