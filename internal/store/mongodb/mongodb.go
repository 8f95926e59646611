// Package mongodb keeps board documents in a single MongoDB collection keyed
// by their full document path. Change streams, when the deployment supports
// them, carry writes made by other processes to local subscribers.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/store"
)

const (
	DocumentsCollection = "documents"
	CountersCollection  = "counters"
)

type Store struct {
	client   *mongo.Client
	docs     *mongo.Collection
	counters *mongo.Collection
	hub      *store.Hub
	now      func() time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type record struct {
	Key        string    `bson:"_id"`
	Collection string    `bson:"collection"`
	ID         string    `bson:"id"`
	Seq        int64     `bson:"seq"`
	CreatedAt  time.Time `bson:"createdAt"`
	Fields     bson.M    `bson:"fields"`
}

// Open connects to uri, verifies the connection with a ping and makes sure
// the listing index exists.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		docs:     db.Collection(DocumentsCollection),
		counters: db.Collection(CountersCollection),
		hub:      store.NewHub(),
		now:      time.Now,
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.watch(watchCtx)
	return s, nil
}

func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	s.hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.docs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "collection", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetName("collection_seq"),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection_seq index: %w", err)
	}
	return nil
}

// nextSeq hands out insertion sequence numbers from a shared counter.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": DocumentsCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	return out.Seq, err
}

func (s *Store) Submit(ctx context.Context, collectionPath string, fields map[string]any) (model.Document, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return model.Document{}, err
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return model.Document{}, err
	}
	id := uuid.NewString()
	rec := record{
		Key:        store.DocumentPath(collectionPath, id),
		Collection: collectionPath,
		ID:         id,
		Seq:        seq,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
		Fields:     bson.M(fields),
	}
	if rec.Fields == nil {
		rec.Fields = bson.M{}
	}
	if _, err := s.docs.InsertOne(ctx, rec); err != nil {
		return model.Document{}, err
	}
	s.hub.Publish(collectionPath)
	// Read back so the caller sees the same value types a later Get returns.
	return s.Get(ctx, rec.Key)
}

func (s *Store) Get(ctx context.Context, documentPath string) (model.Document, error) {
	if _, _, err := store.SplitDocumentPath(documentPath); err != nil {
		return model.Document{}, err
	}
	var rec record
	err := s.docs.FindOne(ctx, bson.M{"_id": documentPath}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Document{}, store.ErrNotFound
	}
	if err != nil {
		return model.Document{}, err
	}
	return rec.document(), nil
}

func (s *Store) List(ctx context.Context, collectionPath string) ([]model.Document, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	cursor, err := s.docs.Find(ctx,
		bson.M{"collection": collectionPath},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []model.Document{}
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, rec.document())
	}
	return docs, cursor.Err()
}

// Update maps each field onto a $set of fields.<name>, so dotted keys touch
// only the nested entry they name.
func (s *Store) Update(ctx context.Context, documentPath string, fields map[string]any) error {
	collectionPath, _, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		_, err := s.Get(ctx, documentPath)
		return err
	}
	set := bson.M{}
	for key, value := range fields {
		if err := store.MergeFields(map[string]any{}, map[string]any{key: value}); err != nil {
			return err
		}
		set["fields."+key] = value
	}
	res, err := s.docs.UpdateOne(ctx, bson.M{"_id": documentPath}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	s.hub.Publish(collectionPath)
	return nil
}

func (s *Store) Delete(ctx context.Context, documentPath string) error {
	collectionPath, _, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return err
	}
	res, err := s.docs.DeleteOne(ctx, bson.M{"_id": documentPath})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	s.hub.Publish(collectionPath)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collectionPath string) (<-chan store.Snapshot, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collectionPath, func(ctx context.Context) ([]model.Document, error) {
		return s.List(ctx, collectionPath)
	})
}

// watch follows the change stream of the documents collection. Standalone
// servers have no change streams; local writes still reach subscribers then.
func (s *Store) watch(ctx context.Context) {
	defer s.wg.Done()
	stream, err := s.docs.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("mongodb change stream unavailable, only local writes are live", "err", err)
		}
		return
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event struct {
			DocumentKey struct {
				Key string `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&event); err != nil {
			slog.Warn("mongodb change event", "err", err)
			continue
		}
		collectionPath, _, err := store.SplitDocumentPath(event.DocumentKey.Key)
		if err != nil {
			continue
		}
		s.hub.Publish(collectionPath)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		slog.Warn("mongodb change stream ended", "err", err)
	}
}

func (r record) document() model.Document {
	fields, _ := normalize(r.Fields).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return model.Document{
		ID:        r.ID,
		Path:      r.Key,
		Seq:       r.Seq,
		CreatedAt: r.CreatedAt,
		Fields:    fields,
	}
}

// normalize turns driver container types into plain maps and slices so
// callers see the same shapes the SQL backends produce.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
