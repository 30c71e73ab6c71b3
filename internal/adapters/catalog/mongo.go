package catalog

import (
	"context"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "admit"

// MongoStore queries catalog collections in MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects and pings the server.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Find translates the filter and options to a native query.
func (s *MongoStore) Find(ctx context.Context, c Collection, f Filter, opts ...FindOption) ([]Document, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	o := buildFindOptions(opts)
	cur, err := s.db.Collection(string(c)).Find(ctx, mongoFilter(f), mongoFindOptions(o))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []Document
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = append(out, plain(m).(Document))
	}
	return out, cur.Err()
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mongoFilter(f Filter) bson.M {
	m := bson.M{}
	for k, v := range f {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			m[k] = bson.M{"$in": v}
			continue
		}
		m[k] = v
	}
	return m
}

func mongoFindOptions(o FindOptions) *options.FindOptions {
	fo := options.Find()
	if len(o.Projection) > 0 {
		p := bson.D{}
		for _, k := range o.Projection {
			p = append(p, bson.E{Key: k, Value: 1})
		}
		fo.SetProjection(p)
	}
	if len(o.Sort) > 0 {
		s := bson.D{}
		for _, k := range o.Sort {
			dir := 1
			if k.Desc {
				dir = -1
			}
			s = append(s, bson.E{Key: k.Field, Value: dir})
		}
		fo.SetSort(s)
	}
	if o.Limit > 0 {
		fo.SetLimit(int64(o.Limit))
	}
	return fo
}

// plain converts driver container types to the store's plain maps and slices.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		d := make(Document, len(t))
		for k, e := range t {
			d[k] = plain(e)
		}
		return d
	case bson.D:
		d := make(Document, len(t))
		for _, e := range t {
			d[e.Key] = plain(e.Value)
		}
		return d
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
