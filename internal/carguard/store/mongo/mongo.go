// Package mongo stores sealed documents in a "documents" collection keyed by
// resource id, and audit records in "log_records" ordered by ObjectID.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
)

const (
	documentsCollection = "documents"
	logCollection       = "log_records"
)

type documentRecord struct {
	Key       string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type logRecord struct {
	Stream     string    `bson:"stream"`
	Payload    []byte    `bson:"payload"`
	AppendedAt time.Time `bson:"appended_at"`
}

type Backend struct {
	client *mongo.Client
	docs   *mongo.Collection
	logs   *mongo.Collection
}

var _ store.Backend = (*Backend)(nil)

// Open connects to uri, selects database and sets up indexes.
func Open(ctx context.Context, uri, database string) (*Backend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri)
	clientOpts.SetMinPoolSize(1)
	clientOpts.SetMaxPoolSize(10)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	b, err := New(connectCtx, client, database)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return b, nil
}

// New uses an already connected client.
func New(ctx context.Context, client *mongo.Client, database string) (*Backend, error) {
	db := client.Database(database)
	b := &Backend{
		client: client,
		docs:   db.Collection(documentsCollection),
		logs:   db.Collection(logCollection),
	}

	if _, err := b.logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "stream", Value: 1}, {Key: "_id", Value: -1}},
		Options: options.Index(),
	}); err != nil {
		return nil, fmt.Errorf("mongo index %s: %w", logCollection, err)
	}
	return b, nil
}

func (b *Backend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var rec documentRecord
	err := b.docs.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", key, err)
	}
	return rec.Payload, nil
}

// Put replaces the whole document; single-document writes are atomic.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	rec := documentRecord{Key: key, Payload: data, UpdatedAt: time.Now().UTC()}
	_, err := b.docs.ReplaceOne(ctx, bson.M{"_id": key}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Append(ctx context.Context, stream string, data []byte) error {
	rec := logRecord{Stream: stream, Payload: data, AppendedAt: time.Now().UTC()}
	if _, err := b.logs.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("mongo insert %s: %w", stream, err)
	}
	return nil
}

// Scan relies on ObjectIDs generated by this process increasing with
// insertion order. Appends to a stream are serialized by its owner.
func (b *Backend) Scan(ctx context.Context, stream string, fn func(data []byte) bool) error {
	cur, err := b.logs.Find(ctx,
		bson.M{"stream": stream},
		options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}),
	)
	if err != nil {
		return fmt.Errorf("mongo find %s: %w", stream, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var rec logRecord
		if err := cur.Decode(&rec); err != nil {
			return fmt.Errorf("mongo decode %s: %w", stream, err)
		}
		if !fn(rec.Payload) {
			return nil
		}
	}
	return cur.Err()
}
