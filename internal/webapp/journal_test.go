package webapp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := NewJournal(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	return journal
}

func TestJournalRecordAndRecent(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	started := time.Now()
	first := &Task{
		ID:        "t1",
		Type:      TaskApplyChanges,
		Org:       "testorg",
		Repo:      ".otterdog",
		Status:    TaskStatusRunning,
		CreatedAt: time.Now().Add(-time.Minute),
		StartedAt: &started,
	}
	require.NoError(t, journal.Record(ctx, first))

	completed := time.Now()
	first.Status = TaskStatusCompleted
	first.CompletedAt = &completed
	first.Duration = 1500 * time.Millisecond
	first.Result = "applied 2 change(s)"
	require.NoError(t, journal.Record(ctx, first))

	second := &Task{
		ID:        "t2",
		Type:      TaskDriftDetection,
		Org:       "testorg",
		Status:    TaskStatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, journal.Record(ctx, second))

	tasks, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	require.Equal(t, "t2", tasks[0].ID)
	require.Equal(t, TaskStatusRunning, tasks[0].Status)
	require.Nil(t, tasks[0].StartedAt)
	require.Nil(t, tasks[0].CompletedAt)

	require.Equal(t, "t1", tasks[1].ID)
	require.Equal(t, TaskStatusCompleted, tasks[1].Status)
	require.Equal(t, "applied 2 change(s)", tasks[1].Result)
	require.Equal(t, 1500*time.Millisecond, tasks[1].Duration)
	require.NotNil(t, tasks[1].StartedAt)
	require.NotNil(t, tasks[1].CompletedAt)
}

func TestJournalRecentLimit(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"t1", "t2", "t3"} {
		task := &Task{
			ID:        id,
			Type:      TaskCheckFile,
			Org:       "testorg",
			Status:    TaskStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, journal.Record(ctx, task))
	}

	tasks, err := journal.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "t3", tasks[0].ID)
	require.Equal(t, "t2", tasks[1].ID)
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	journal, err := NewJournal(path)
	require.NoError(t, err)
	require.NoError(t, journal.Record(ctx, &Task{
		ID:        "t1",
		Type:      TaskValidatePullRequest,
		Org:       "testorg",
		Status:    TaskStatusFailed,
		CreatedAt: time.Now(),
		Error:     "fetch failed",
	}))
	require.NoError(t, journal.Close())

	reopened, err := NewJournal(path)
	require.NoError(t, err)
	defer reopened.Close()

	tasks, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "fetch failed", tasks[0].Error)
}

func TestJournalCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "tasks.db")

	journal, err := NewJournal(path)
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Record(context.Background(), &Task{
		ID:        "t1",
		Type:      TaskCheckFile,
		Org:       "testorg",
		Status:    TaskStatusQueued,
		CreatedAt: time.Now(),
	}))
}
