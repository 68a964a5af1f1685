package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type blobDocument struct {
	Path      string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	Size      int       `bson:"size"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo stores one document per path. ReplaceOne swaps the whole document,
// which gives the whole-object put semantics the store requires.
type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database, collection string) *Mongo {
	if collection == "" {
		collection = "brief_blobs"
	}
	return &Mongo{coll: db.Collection(collection)}
}

func (m *Mongo) Put(ctx context.Context, path string, data []byte) error {
	doc := blobDocument{Path: path, Data: data, Size: len(data), UpdatedAt: time.Now().UTC()}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": path}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo put %s: %w", path, err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, path string) ([]byte, error) {
	var doc blobDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %s: %w", path, err)
	}
	return doc.Data, nil
}

func prefixFilter(prefix string) bson.M {
	return bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
}

func (m *Mongo) List(ctx context.Context, prefix string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cur, err := m.coll.Find(ctx, prefixFilter(prefix), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list %s: %w", prefix, err)
	}
	defer cur.Close(ctx)

	out := []string{}
	for cur.Next(ctx) {
		var row struct {
			Path string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.Path)
	}
	return out, cur.Err()
}

func (m *Mongo) Delete(ctx context.Context, prefix string) error {
	if _, err := m.coll.DeleteMany(ctx, prefixFilter(prefix)); err != nil {
		return fmt.Errorf("mongo delete %s: %w", prefix, err)
	}
	return nil
}
