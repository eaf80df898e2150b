package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
)

// numericCollation makes "10" sort after "9" so string ids order like numbers.
var numericCollation = &options.Collation{Locale: "en", NumericOrdering: true}

var newestFirst = bson.D{{Key: "sourceItemId", Value: -1}}

type mongoRecord struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	SourceItemID    string             `bson:"sourceItemId"`
	AuthorID        string             `bson:"authorId"`
	TranslatedText  string             `bson:"translatedText"`
	OriginalText    string             `bson:"originalText"`
	SourceCreatedAt time.Time          `bson:"sourceCreatedAt"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (r mongoRecord) toModel() models.SyncRecord {
	return models.SyncRecord{
		RecordID:        r.ID.Hex(),
		SourceItemID:    r.SourceItemID,
		AuthorID:        r.AuthorID,
		TranslatedText:  r.TranslatedText,
		OriginalText:    r.OriginalText,
		SourceCreatedAt: r.SourceCreatedAt.UTC(),
		RecordCreatedAt: r.CreatedAt.UTC(),
	}
}

// MongoDBStorage implements Storage interface using MongoDB
type MongoDBStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBStorage connects, pings and makes sure the unique id index exists.
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	storage := &MongoDBStorage{
		client:     client,
		collection: client.Database(cfg.MongoDBDatabase).Collection(cfg.MongoDBCollection),
	}

	if err := storage.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	return storage, nil
}

func (m *MongoDBStorage) ensureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: newestFirst,
		Options: options.Index().
			SetName("source_item_id_desc").
			SetUnique(true).
			SetCollation(numericCollation),
	})
	return err
}

// LatestRecord returns the record with the highest source item id.
func (m *MongoDBStorage) LatestRecord(ctx context.Context) (*models.SyncRecord, error) {
	opts := options.FindOne().SetSort(newestFirst).SetCollation(numericCollation)

	var doc mongoRecord
	err := m.collection.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest record: %w", err)
	}

	record := doc.toModel()
	return &record, nil
}

// AppendRecord inserts a record; MongoDB assigns the id.
func (m *MongoDBStorage) AppendRecord(ctx context.Context, record models.SyncRecord) (models.SyncRecord, error) {
	doc := mongoRecord{
		SourceItemID:    record.SourceItemID,
		AuthorID:        record.AuthorID,
		TranslatedText:  record.TranslatedText,
		OriginalText:    record.OriginalText,
		SourceCreatedAt: record.SourceCreatedAt,
		CreatedAt:       record.RecordCreatedAt,
	}

	res, err := m.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return models.SyncRecord{}, ErrDuplicateRecord
	}
	if err != nil {
		return models.SyncRecord{}, fmt.Errorf("failed to store record %s: %w", record.SourceItemID, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return models.SyncRecord{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	record.RecordID = oid.Hex()
	return record, nil
}

// ListRecords retrieves records newest first with pagination
func (m *MongoDBStorage) ListRecords(ctx context.Context, limit int, offset int) ([]models.SyncRecord, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetCollation(numericCollation).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	records := make([]models.SyncRecord, len(docs))
	for i, doc := range docs {
		records[i] = doc.toModel()
	}
	return records, nil
}

// Close disconnects the MongoDB client
func (m *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
