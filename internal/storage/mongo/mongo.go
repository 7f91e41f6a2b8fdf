// Package mongo implements storage.Storage on a MongoDB database.
//
// The document key is stored as _id and stripped again on the way out,
// so callers see exactly the fields they wrote. Field names are checked
// with storage.CheckFields before they reach the server: a dotted name
// in $set would otherwise update a nested path, and a "$" name would be
// rejected by the server.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aanand-mishra/alunos-api/internal/storage"
	"github.com/aanand-mishra/alunos-api/internal/types"
)

const idField = "_id"

// Mongo is a MongoDB-backed document store.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and pings the server before returning.
func New(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.New: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.New: ping: %w", err)
	}

	return &Mongo{client: client, db: client.Database(database)}, nil
}

// Get finds the document whose _id is key, or returns storage.ErrNotFound.
func (m *Mongo) Get(ctx context.Context, collection, key string) (types.Document, error) {
	if err := storage.CheckKey(key); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{idField: key}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: find: %w", err)
	}
	return fromBSON(raw), nil
}

// Set replaces the document with upsert, so it also creates it.
func (m *Mongo) Set(ctx context.Context, collection, key string, doc types.Document) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	if err := storage.CheckFields(doc); err != nil {
		return fmt.Errorf("Set: %w", err)
	}

	replacement := toBSON(doc)
	replacement[idField] = key

	_, err := m.db.Collection(collection).ReplaceOne(ctx,
		bson.M{idField: key}, replacement,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("Set: replace: %w", err)
	}
	return nil
}

// Update applies fields with $set. MatchedCount tells a missing
// document apart from an update that changed nothing.
func (m *Mongo) Update(ctx context.Context, collection, key string, fields types.Document) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if err := storage.CheckFields(fields); err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	set := toBSON(fields)
	if len(set) == 0 {
		// $set with no fields is rejected by the server.
		if _, err := m.Get(ctx, collection, key); err != nil {
			return err
		}
		return nil
	}

	res, err := m.db.Collection(collection).UpdateOne(ctx,
		bson.M{idField: key}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes the document. DeleteOne on a missing _id is not an error.
func (m *Mongo) Delete(ctx context.Context, collection, key string) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{idField: key}); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// List returns every document in the collection.
func (m *Mongo) List(ctx context.Context, collection string) ([]types.Document, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("List: find: %w", err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("List: decode: %w", err)
	}

	docs := make([]types.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

// Drop removes a whole collection. Used to clean up after tests.
func (m *Mongo) Drop(ctx context.Context, collection string) error {
	return m.db.Collection(collection).Drop(ctx)
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func toBSON(doc types.Document) bson.M {
	return bson.M(doc.Clone())
}

func fromBSON(raw bson.M) types.Document {
	delete(raw, idField)
	return types.Document(normalize(raw).(map[string]any))
}

// normalize turns driver container types into plain maps and slices so
// documents encode to JSON the same way as with the other backends.
func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
