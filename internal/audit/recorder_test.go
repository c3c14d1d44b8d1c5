package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagate/internal/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	fail    bool
}

func (m *memAuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("store unavailable")
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry{}, m.entries...), int64(len(m.entries)), nil
}

func (m *memAuditRepo) Summary(ctx context.Context, filter domain.AuditFilter) (*domain.AuditSummary, error) {
	return &domain.AuditSummary{}, nil
}

func (m *memAuditRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_PersistsEntries(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 8)

	rec.Record(&domain.AuditEntry{Operation: domain.OpInsert, TableName: "customers", Success: true})
	rec.Close()

	require.Equal(t, 1, repo.count())
	got := repo.entries[0]
	assert.NotEmpty(t, got.ID)
	assert.NotEmpty(t, got.Fingerprint)
	assert.Equal(t, domain.AnonymousActor, got.Actor)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecorder_KeepsCallerFields(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 8)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.Record(&domain.AuditEntry{
		ID:        "fixed-id",
		Operation: domain.OpDelete,
		TableName: "orders",
		Actor:     "alice",
		CreatedAt: created,
	})
	rec.Close()

	require.Equal(t, 1, repo.count())
	got := repo.entries[0]
	assert.Equal(t, "fixed-id", got.ID)
	assert.Equal(t, "alice", got.Actor)
	assert.Equal(t, created, got.CreatedAt)
}

func TestRecorder_CloseFlushesQueue(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 64)

	for i := 0; i < 50; i++ {
		rec.Record(&domain.AuditEntry{Operation: domain.OpRead, TableName: "customers", Success: true})
	}
	rec.Close()

	assert.Equal(t, 50, repo.count())
}

func TestRecorder_FullQueueFallsBackToDirectWrite(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 1)

	// Far more entries than the queue holds; none may be lost.
	for i := 0; i < 100; i++ {
		rec.Record(&domain.AuditEntry{Operation: domain.OpUpdate, TableName: "orders", Success: true})
	}
	rec.Close()

	assert.Equal(t, 100, repo.count())
}

func TestRecorder_StoreFailureDoesNotPanic(t *testing.T) {
	repo := &memAuditRepo{fail: true}
	rec := NewRecorder(repo, discardLogger(), 8)

	rec.Record(&domain.AuditEntry{Operation: domain.OpInsert, TableName: "customers"})
	rec.Close()

	assert.Zero(t, repo.count())
}

func TestRecorder_NilEntryIgnored(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 8)

	rec.Record(nil)
	rec.Close()

	assert.Zero(t, repo.count())
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	rec := NewRecorder(&memAuditRepo{}, discardLogger(), 8)
	rec.Close()
	rec.Close()
}

func TestRecorder_RecordAfterCloseStillWrites(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 8)
	rec.Close()

	rec.Record(&domain.AuditEntry{Operation: domain.OpInsert, TableName: "customers", Success: true})

	assert.Equal(t, 1, repo.count())
}

func TestRecorder_ConcurrentRecordAndClose(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 1)

	// Hammer a tiny queue while Close runs so both the full-queue
	// fallback and the shutdown path race the writer. No entry may be
	// lost on either side.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rec.Record(&domain.AuditEntry{Operation: domain.OpRead, TableName: "customers", Success: true})
			}
		}()
	}
	rec.Close()
	wg.Wait()

	assert.Equal(t, 200, repo.count())
}

func TestRecorder_ConcurrentRecord(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, discardLogger(), 16)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rec.Record(&domain.AuditEntry{Operation: domain.OpRead, TableName: "customers", Success: true})
			}
		}()
	}
	wg.Wait()
	rec.Close()

	assert.Equal(t, 200, repo.count())
}
