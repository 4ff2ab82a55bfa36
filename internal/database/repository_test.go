package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cursorbeacon/cursorbeacon/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func activation(id string, at time.Time, outcome string, ms int64) *models.Activation {
	return &models.Activation{
		SessionID:  id,
		Timestamp:  at,
		TargetX:    500,
		TargetY:    500,
		Width:      1920,
		Height:     1080,
		Elements:   7,
		DurationMs: ms,
		Outcome:    outcome,
		Trigger:    models.TriggerSignal,
	}
}

func TestActivationLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	latest, err := repo.GetLatest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.CreateActivation(activation("a", now.Add(-2*time.Hour), "completed", 1200)))
	require.NoError(t, repo.CreateActivation(activation("b", now.Add(-time.Hour), "completed", 1200)))
	require.NoError(t, repo.CreateActivation(activation("c", now.Add(-time.Minute), "aborted", 300)))

	latest, err = repo.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, "c", latest.SessionID)

	got, err := repo.GetActivation("b")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), got.DurationMs)

	_, err = repo.GetActivation("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	recent, err := repo.GetActivationsSince(now.Add(-90*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].SessionID)

	limited, err := repo.GetActivationsSince(now.Add(-3*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOutcomeSummary(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	require.NoError(t, repo.CreateActivation(activation("a", now, "completed", 1200)))
	require.NoError(t, repo.CreateActivation(activation("b", now, "completed", 1000)))
	require.NoError(t, repo.CreateActivation(activation("c", now, "aborted", 300)))

	sums, err := repo.GetOutcomeSummarySince(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "completed", sums[0].Outcome)
	assert.Equal(t, 2, sums[0].Count)
	assert.InDelta(t, 1100, sums[0].AvgDurationMs, 1e-9)
	assert.Equal(t, "aborted", sums[1].Outcome)
}

func TestErrorsAndClear(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{Timestamp: now, Source: models.SourceActivate, ErrorMsg: "no compositor"}))
	require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{Timestamp: now, Source: models.SourceSettings, ErrorMsg: "bad json"}))
	require.NoError(t, repo.CreateActivation(activation("a", now, "completed", 1200)))

	n, err := repo.CountErrorsSince(now.Add(-time.Minute), models.SourceActivate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountErrorsSince(now.Add(-time.Minute), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.Clear())

	n, err = repo.CountErrorsSince(now.Add(-time.Minute), "")
	require.NoError(t, err)
	assert.Zero(t, n)
	latest, err := repo.GetLatest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestDeleteOldActivations(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	require.NoError(t, repo.CreateActivation(activation("old", now.AddDate(0, 0, -40), "completed", 1200)))
	require.NoError(t, repo.CreateActivation(activation("new", now, "completed", 1200)))

	n, err := repo.DeleteOldActivations(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := repo.GetActivationsSince(now.AddDate(-1, 0, 0), 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].SessionID)
}
