// Package audit records every attempted operation into the append-only
// audit store without adding latency to the primary path.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"datagate/internal/domain"
)

var _ domain.AuditRecorder = (*Recorder)(nil)

// DefaultBufferSize is the channel capacity of the background writer.
const DefaultBufferSize = 256

// writeTimeout bounds each persistence call so a stuck audit store
// cannot wedge the drain goroutine.
const writeTimeout = 5 * time.Second

// Recorder persists audit entries asynchronously. Record never blocks
// the caller: entries are queued to a background goroutine, and when the
// queue is full the entry is written synchronously in a throwaway
// goroutine instead of being dropped.
type Recorder struct {
	repo   domain.AuditRepository
	logger *slog.Logger

	queue  chan *domain.AuditEntry
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup

	mu      sync.RWMutex
	closing bool
}

// NewRecorder starts a Recorder draining into repo. bufferSize <= 0
// selects DefaultBufferSize. Callers must Close it to flush pending
// entries on shutdown.
func NewRecorder(repo domain.AuditRepository, logger *slog.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *domain.AuditEntry, bufferSize),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record queues one entry for persistence. A missing ID, fingerprint, or
// timestamp is filled in here so callers only describe the operation.
func (r *Recorder) Record(e *domain.AuditEntry) {
	if e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Actor == "" {
		e.Actor = domain.AnonymousActor
	}
	if e.Fingerprint == "" {
		e.Fingerprint = e.ComputeFingerprint()
	}

	r.mu.RLock()
	if r.closing {
		// Shutdown already started: the drain goroutine may be gone,
		// so write inline rather than drop the entry.
		r.mu.RUnlock()
		r.persist(e)
		return
	}
	select {
	case r.queue <- e:
		r.mu.RUnlock()
	default:
		// Queue full. Audit completeness beats latency here, so fall
		// back to a direct write off the caller's goroutine. The Add
		// happens under the read lock, before Close can reach Wait.
		r.wg.Add(1)
		r.mu.RUnlock()
		go func() {
			defer r.wg.Done()
			r.persist(e)
		}()
	}
}

// Close stops the background writer and flushes every queued entry.
// Entries recorded after Close are still written, synchronously.
func (r *Recorder) Close() {
	r.closed.Do(func() {
		r.mu.Lock()
		r.closing = true
		r.mu.Unlock()
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.persist(e)
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					r.persist(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(e *domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Insert(ctx, e); err != nil {
		r.logger.Error("audit write failed",
			"entry_id", e.ID,
			"table", e.TableName,
			"operation", string(e.Operation),
			"error", err)
	}
}
