package history

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorbeacon/cursorbeacon/internal/animator"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
)

type memStore struct {
	mu          sync.Mutex
	activations []*models.Activation
	errs        []*models.ErrorLog
	fail        error
	gate        chan struct{}
}

func (m *memStore) CreateActivation(a *models.Activation) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.activations = append(m.activations, a)
	return nil
}

func (m *memStore) CreateErrorLog(e *models.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, e)
	return nil
}

var started = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func report(id string) animator.Report {
	return animator.Report{
		ID:       id,
		Target:   image.Pt(500, 500),
		Bounds:   image.Rect(0, 0, 1920, 1080),
		Elements: 7,
		Started:  started,
		Duration: 1200 * time.Millisecond,
		Outcome:  animator.OutcomeCompleted,
	}
}

func TestRecordActivation(t *testing.T) {
	store := &memStore{}
	r := New(store, 8, nil)

	r.RecordActivation(report("abc"), models.TriggerSignal)
	r.Close()

	require.Len(t, store.activations, 1)
	a := store.activations[0]
	assert.Equal(t, "abc", a.SessionID)
	assert.Equal(t, started, a.Timestamp)
	assert.Equal(t, 500, a.TargetX)
	assert.Equal(t, 1920, a.Width)
	assert.Equal(t, 1080, a.Height)
	assert.Equal(t, int64(1200), a.DurationMs)
	assert.Equal(t, "completed", a.Outcome)
	assert.Equal(t, models.TriggerSignal, a.Trigger)
	assert.Empty(t, store.errs)

	written, dropped, failed := r.Stats()
	assert.Equal(t, uint64(1), written)
	assert.Zero(t, dropped)
	assert.Zero(t, failed)
}

func TestAbortedSessionLogsError(t *testing.T) {
	store := &memStore{}
	r := New(store, 8, nil)

	rep := report("abc")
	rep.Outcome = animator.OutcomeAborted
	rep.Duration = 32 * time.Millisecond
	rep.Err = errors.New("failed to present frame: connection lost")
	r.RecordActivation(rep, models.TriggerHTTP)
	r.Close()

	require.Len(t, store.errs, 1)
	assert.Equal(t, models.SourceSession, store.errs[0].Source)
	assert.Equal(t, started.Add(32*time.Millisecond), store.errs[0].Timestamp)
	assert.Contains(t, store.errs[0].ErrorMsg, "connection lost")
}

func TestRecordError(t *testing.T) {
	store := &memStore{}
	r := New(store, 8, nil)

	r.RecordError(models.SourceActivate, errors.New("no compositor"), started)
	r.Close()

	require.Len(t, store.errs, 1)
	assert.Equal(t, "no compositor", store.errs[0].ErrorMsg)
}

func TestFullQueueDrops(t *testing.T) {
	store := &memStore{gate: make(chan struct{})}
	r := New(store, 1, nil)

	// the writer takes the first record and blocks on the gate, the second
	// fills the queue, the rest are dropped
	r.RecordActivation(report("1"), "")
	require.Eventually(t, func() bool { return len(r.queue) == 0 }, time.Second, time.Millisecond)
	r.RecordActivation(report("2"), "")
	r.RecordActivation(report("3"), "")
	r.RecordActivation(report("4"), "")

	close(store.gate)
	r.Close()

	written, dropped, _ := r.Stats()
	assert.Equal(t, uint64(2), written)
	assert.Equal(t, uint64(2), dropped)
}

func TestWriteFailureIsCounted(t *testing.T) {
	store := &memStore{fail: errors.New("database is locked")}
	r := New(store, 4, nil)

	r.RecordActivation(report("1"), "")
	r.Close()

	_, _, failed := r.Stats()
	assert.Equal(t, uint64(1), failed)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	store := &memStore{}
	r := New(store, 4, nil)
	r.Close()
	r.Close()

	r.RecordError(models.SourceActivate, errors.New("late"), started)
	_, dropped, _ := r.Stats()
	assert.Equal(t, uint64(1), dropped)
	assert.Empty(t, store.errs)
}
