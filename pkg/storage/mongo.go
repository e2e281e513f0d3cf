package storage

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	sberrors "github.com/matzehuels/sheetblocks/pkg/errors"
)

const (
	defaultMongoDatabase   = "sheetblocks"
	defaultMongoCollection = "records"
)

// mongoRecord is the stored document shape.
type mongoRecord struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key in a single collection. The
// database comes from the URI path and defaults to "sheetblocks".
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and pings the primary.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "parse mongo uri")
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "connect to mongo")
	}

	err = RetryWithBackoff(ctx, func() error {
		if err := client.Ping(ctx, nil); err != nil {
			return Retryable(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "ping mongo")
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(dbName).Collection(defaultMongoCollection),
	}, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rec mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "read %s", key)
	}
	return rec.Value, true, nil
}

// Put implements Store.
func (s *MongoStore) Put(ctx context.Context, key string, data []byte) error {
	rec := mongoRecord{Key: key, Value: data, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "write %s", key)
	}
	return nil
}

// Exists implements Store.
func (s *MongoStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "stat %s", key)
	}
	return n > 0, nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "delete %s", key)
	}
	return nil
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	defer cur.Close(ctx)

	var keys []string
	for cur.Next(ctx) {
		var rec struct {
			Key string `bson:"_id"`
		}
		if err := cur.Decode(&rec); err != nil {
			return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
		}
		keys = append(keys, rec.Key)
	}
	if err := cur.Err(); err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	return keys, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
