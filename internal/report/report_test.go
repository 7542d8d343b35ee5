package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Summary(t *testing.T) {
	a := New()
	a.Fetched(5)
	a.Success("m1", 0)
	a.Success("m2", 2)
	a.Skip("m3")
	a.Failure("m4", eris.New("boom"))
	a.Failure("m5", eris.New("bust"))

	s := a.Summary()
	assert.Equal(t, 5, s.Fetched)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 2, s.LinesSkipped)
	require.Len(t, s.Failures, 2)
	assert.Equal(t, "m4", s.Failures[0].MessageID)
	assert.Equal(t, "boom", s.Failures[0].Error)
}

func TestAggregator_EmitPostsWebhookOnFailures(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(WithWebhook(srv.URL))
	a.Fetched(1)
	a.Failure("m1", eris.New("boom"))
	a.Emit(context.Background(), "run-42")

	assert.Equal(t, "run-42", got.RunID)
	assert.Equal(t, 1, got.Summary.Failed)
	require.Len(t, got.Summary.Failures, 1)
	assert.Equal(t, "m1", got.Summary.Failures[0].MessageID)
}

func TestAggregator_EmitSkipsWebhookWhenClean(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	a := New(WithWebhook(srv.URL))
	a.Fetched(2)
	a.Success("m1", 0)
	a.Success("m2", 0)
	a.Emit(context.Background(), "run-42")

	assert.Zero(t, calls)
}

func TestAggregator_WebhookFailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := New(WithWebhook(srv.URL))
	a.Failure("m1", eris.New("boom"))
	s := a.Emit(context.Background(), "run-42")
	assert.Equal(t, 1, s.Failed)
}
