package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

type MongoRepository[T models.Resource] struct {
	kind  *models.Kind[T]
	coll  *mongo.Collection
	now   func() time.Time
	newID func() string
}

func NewMongoRepository[T models.Resource](coll *mongo.Collection, kind *models.Kind[T]) *MongoRepository[T] {
	return &MongoRepository[T]{
		kind:  kind,
		coll:  coll,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// EnsureIndexes creates the unique indexes of the kind plus the listing indexes.
func (r *MongoRepository[T]) EnsureIndexes(ctx context.Context) error {
	var idx []mongo.IndexModel
	ownerUnique := false
	for _, u := range r.kind.Unique {
		if u.Field == "owner_id" {
			ownerUnique = true
		}
		idx = append(idx, mongo.IndexModel{
			Keys:    bson.D{{Key: u.Field, Value: 1}},
			Options: options.Index().SetUnique(true).SetName(uniqueIndexName(u.Field)),
		})
	}
	if !ownerUnique {
		idx = append(idx, mongo.IndexModel{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_created_idx"),
		})
	}
	idx = append(idx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("created_idx"),
	})
	if _, err := r.coll.Indexes().CreateMany(ctx, idx); err != nil {
		return fmt.Errorf("create %s indexes: %w", r.kind.Collection, err)
	}
	return nil
}

func (r *MongoRepository[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	meta := rec.Meta()
	meta.ID = r.newID()
	meta.CreatedAt = r.now()
	meta.UpdatedAt = meta.CreatedAt
	if err := models.Validate(rec); err != nil {
		return zero, err
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return zero, classify(r.kind, "create", err)
	}
	return rec, nil
}

func (r *MongoRepository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	out := r.kind.New()
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err == mongo.ErrNoDocuments {
		return zero, apperr.NotFound(r.kind.Name, id)
	}
	if err != nil {
		return zero, classify(r.kind, "get", err)
	}
	return out, nil
}

func (r *MongoRepository[T]) Update(ctx context.Context, id string, patch models.Patch) (T, error) {
	var zero T
	current, err := r.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	patch = writable(r.kind, patch)
	merged, err := r.kind.Apply(current, patch)
	if err != nil {
		return zero, err
	}
	meta := merged.Meta()
	meta.UpdatedAt = stamp(r.now(), meta.CreatedAt)
	if err := models.Validate(merged); err != nil {
		return zero, err
	}

	doc, err := models.ToDoc(merged)
	if err != nil {
		return zero, err
	}
	set := bson.M{"updated_at": meta.UpdatedAt}
	unset := bson.M{}
	for k := range patch {
		if v, ok := doc[k]; ok {
			set[k] = v
		} else {
			unset[k] = ""
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	out := r.kind.New()
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(out)
	if err == mongo.ErrNoDocuments {
		return zero, apperr.NotFound(r.kind.Name, id)
	}
	if err != nil {
		return zero, classify(r.kind, "update", err)
	}
	return out, nil
}

func (r *MongoRepository[T]) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify(r.kind, "delete", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound(r.kind.Name, id)
	}
	return nil
}

func (r *MongoRepository[T]) ListByOwner(ctx context.Context, ownerID string) ([]T, error) {
	cur, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, classify(r.kind, "list", err)
	}
	return r.decodeAll(ctx, cur)
}

func (r *MongoRepository[T]) ListPublic(ctx context.Context, f Filter) ([]T, error) {
	q := bson.M{}
	for k, v := range r.kind.PublicScope {
		q[k] = v
	}
	for k, v := range f.Equals {
		if r.kind.CanFilter(k) {
			q[k] = v
		}
	}
	proj := bson.M{}
	for _, h := range r.kind.Hidden() {
		proj[h] = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(f.limit())).
		SetSkip(int64(max(f.Skip, 0))).
		SetProjection(proj)

	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, classify(r.kind, "list", err)
	}
	return r.decodeAll(ctx, cur)
}

func (r *MongoRepository[T]) ForEach(ctx context.Context, fn func(T) error) error {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return classify(r.kind, "scan", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		rec := r.kind.New()
		if err := cur.Decode(rec); err != nil {
			return fmt.Errorf("decode %s: %w", r.kind.Name, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return classify(r.kind, "scan", cur.Err())
}

func (r *MongoRepository[T]) decodeAll(ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	out := []T{}
	for cur.Next(ctx) {
		rec := r.kind.New()
		if err := cur.Decode(rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.kind.Name, err)
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, classify(r.kind, "list", err)
	}
	return out, nil
}
