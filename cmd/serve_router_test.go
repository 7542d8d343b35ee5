package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/ledger"
	"github.com/sells-group/intake-cli/internal/model"
)

func newRouterWithLedger(t *testing.T) (*ledger.SQLiteStore, http.Handler) {
	t.Helper()
	led, err := ledger.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() }) //nolint:errcheck
	require.NoError(t, led.Migrate(context.Background()))
	return led, newRouter(led)
}

func TestServe_Healthz(t *testing.T) {
	_, router := newRouterWithLedger(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_ListRuns(t *testing.T) {
	led, router := newRouterWithLedger(t)
	ctx := context.Background()

	run, err := led.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, led.CompleteRun(ctx, run.ID, model.RunStatusComplete,
		&model.RunSummary{Fetched: 2, Succeeded: 2}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/?status=complete", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, run.ID, body.Runs[0].ID)
	require.NotNil(t, body.Runs[0].Summary)
	assert.Equal(t, 2, body.Runs[0].Summary.Succeeded)
}

func TestServe_ListRuns_BadLimit(t *testing.T) {
	_, router := newRouterWithLedger(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/?limit=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_GetRun_NotFound(t *testing.T) {
	_, router := newRouterWithLedger(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_RunMessages(t *testing.T) {
	led, router := newRouterWithLedger(t)
	ctx := context.Background()

	run, err := led.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, led.RecordMessage(ctx, model.MessageRecord{
		RunID: run.ID, MessageID: "m1", Status: model.MessageSucceeded, EstimateID: "est-1",
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []model.MessageRecord `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "est-1", body.Messages[0].EstimateID)
}
