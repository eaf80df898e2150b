package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
)

// ErrDuplicateRecord is returned when a record for the same source item already exists.
var ErrDuplicateRecord = errors.New("sync record already exists")

// Storage interface defines the contract for data storage
type Storage interface {
	// LatestRecord returns the record with the highest source item id, or nil when there is none.
	LatestRecord(ctx context.Context) (*models.SyncRecord, error)
	// AppendRecord persists a new record and returns it with its storage-assigned RecordID.
	AppendRecord(ctx context.Context, record models.SyncRecord) (models.SyncRecord, error)
	// ListRecords returns records newest first.
	ListRecords(ctx context.Context, limit int, offset int) ([]models.SyncRecord, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case config.StorageDynamoDB:
		return NewDynamoDBStorage(ctx, cfg)
	case config.StorageMongoDB:
		return NewMongoDBStorage(ctx, cfg)
	case config.StoragePostgreSQL:
		return NewPostgreSQLStorage(ctx, cfg)
	case config.StorageMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
