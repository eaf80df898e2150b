package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
)

// MemoryStorage keeps records in process memory, ordered newest first.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []models.SyncRecord
	bySrcID map[string]struct{}
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{bySrcID: make(map[string]struct{})}
}

// LatestRecord returns the record with the highest source id, or nil when empty.
func (m *MemoryStorage) LatestRecord(ctx context.Context) (*models.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.records) == 0 {
		return nil, nil
	}
	latest := m.records[0]
	return &latest, nil
}

// AppendRecord assigns a record id and stores record, rejecting repeated source ids.
func (m *MemoryStorage) AppendRecord(ctx context.Context, record models.SyncRecord) (models.SyncRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.SyncRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySrcID[record.SourceItemID]; ok {
		return models.SyncRecord{}, ErrDuplicateRecord
	}

	record.RecordID = uuid.NewString()
	m.bySrcID[record.SourceItemID] = struct{}{}
	m.records = append(m.records, record)
	sort.SliceStable(m.records, func(i, j int) bool {
		return models.CompareItemIDs(m.records[i].SourceItemID, m.records[j].SourceItemID) > 0
	})
	return record, nil
}

// ListRecords returns up to limit records after offset, newest first.
func (m *MemoryStorage) ListRecords(ctx context.Context, limit int, offset int) ([]models.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if offset >= len(m.records) {
		return []models.SyncRecord{}, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	out := make([]models.SyncRecord, end-offset)
	copy(out, m.records[offset:end])
	return out, nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}
