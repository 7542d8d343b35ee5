package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	summary := &model.RunSummary{Fetched: 3, Succeeded: 2, Failed: 1,
		Failures: []model.MessageFailure{{MessageID: "m3", Error: "boom"}}}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.Fetched)
	require.Len(t, got.Summary.Failures, 1)
	assert.Equal(t, "m3", got.Summary.Failures[0].MessageID)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.CompleteRun(context.Background(), "nope", model.RunStatusComplete, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, model.RunStatusCheckpointed, nil))

	checkpointed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusCheckpointed})
	require.NoError(t, err)
	require.Len(t, checkpointed, 1)
	assert.Equal(t, r1.ID, checkpointed[0].ID)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_RecordMessage_UpsertsOnReprocess(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)

	require.NoError(t, st.RecordMessage(ctx, model.MessageRecord{
		RunID: run.ID, MessageID: "m1", Status: model.MessageFailed, Error: "transient",
	}))
	require.NoError(t, st.RecordMessage(ctx, model.MessageRecord{
		RunID: run.ID, MessageID: "m1", Status: model.MessageSucceeded,
		CustomerID: "cust-1", EstimateID: "est-1",
	}))

	msgs, err := st.ListMessages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageSucceeded, msgs[0].Status)
	assert.Empty(t, msgs[0].Error)
	assert.Equal(t, "est-1", msgs[0].EstimateID)
}

func TestSQLite_ContinuationQueue_FIFO(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.EnqueueContinuation(ctx, model.ContinuationParams{Query: "label:intake", BatchSize: 10, ParentRunID: "run-1"})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond) // distinct created_at ordering
	second, err := st.EnqueueContinuation(ctx, model.ContinuationParams{Query: "label:intake", BatchSize: 10, ParentRunID: "run-2"})
	require.NoError(t, err)

	c, err := st.DequeueContinuation(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, first, c.ID)
	assert.Equal(t, "run-1", c.Params.ParentRunID)
	assert.Equal(t, 10, c.Params.BatchSize)

	c, err = st.DequeueContinuation(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, second, c.ID)

	// Queue drained; claimed rows are not handed out again.
	c, err = st.DequeueContinuation(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)
}
