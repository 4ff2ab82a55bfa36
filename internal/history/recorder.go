// Package history records finished activations and activation failures to
// the history database without blocking the scheduler goroutine.
package history

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cursorbeacon/cursorbeacon/internal/animator"
	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
)

// DefaultQueueSize bounds the number of unwritten records
const DefaultQueueSize = 64

// Store persists history records. *database.Repository satisfies it.
type Store interface {
	CreateActivation(a *models.Activation) error
	CreateErrorLog(e *models.ErrorLog) error
}

// Recorder writes records from a background goroutine. Record calls never
// block; when the queue is full the record is dropped and counted.
type Recorder struct {
	store Store
	log   logger.Logger
	queue chan func(Store) error

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// New starts a recorder with a queue of size entries
func New(store Store, size int, log logger.Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = logger.Noop()
	}
	r := &Recorder{
		store: store,
		log:   log,
		queue: make(chan func(Store) error, size),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for write := range r.queue {
		if err := write(r.store); err != nil {
			r.failed.Add(1)
			r.log.Error("failed to write history: %v", err)
			continue
		}
		r.written.Add(1)
	}
}

func (r *Recorder) enqueue(write func(Store) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- write:
	default:
		r.dropped.Add(1)
		r.log.Warn("history queue full, record dropped")
	}
}

// RecordActivation queues a finished session. Aborted sessions with an
// error also produce an error log entry.
func (r *Recorder) RecordActivation(rep animator.Report, trigger string) {
	a := &models.Activation{
		SessionID:  rep.ID,
		Timestamp:  rep.Started,
		TargetX:    rep.Target.X,
		TargetY:    rep.Target.Y,
		Width:      rep.Bounds.Dx(),
		Height:     rep.Bounds.Dy(),
		Elements:   rep.Elements,
		DurationMs: rep.Duration.Milliseconds(),
		Outcome:    rep.Outcome,
		Trigger:    trigger,
	}
	r.enqueue(func(s Store) error {
		return s.CreateActivation(a)
	})
	if rep.Err != nil {
		r.RecordError(models.SourceSession, rep.Err, rep.Started.Add(rep.Duration))
	}
}

// RecordError queues an error log entry
func (r *Recorder) RecordError(source string, err error, at time.Time) {
	e := &models.ErrorLog{
		Timestamp: at,
		Source:    source,
		ErrorMsg:  err.Error(),
	}
	r.enqueue(func(s Store) error {
		return s.CreateErrorLog(e)
	})
}

// Close stops accepting records, writes what is queued and waits for the
// writer to finish. Closing twice is a no-op.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

// Stats reports written, dropped and failed record counts
func (r *Recorder) Stats() (written, dropped, failed uint64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}
