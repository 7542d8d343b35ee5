package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer serves a token endpoint plus the given API handler.
func newTestServer(t *testing.T, apiHandler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "cid", r.Form.Get("client_id"))
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
	})
	mux.HandleFunc("/", apiHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient("cid", "secret", "refresh",
		WithBaseURL(srv.URL),
		WithTokenURL(srv.URL+"/token"),
		WithProcessedLabel("Label_42"),
	)
	return srv, client
}

func TestRefreshAccessToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	tok, err := client.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestRefreshAccessToken_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	client := NewClient("cid", "secret", "bad-refresh", WithTokenURL(srv.URL))
	_, err := client.RefreshAccessToken(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestListMessages(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages", r.URL.Path)
		assert.Equal(t, "label:demo is:unread", r.URL.Query().Get("q"))
		assert.Equal(t, "25", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(listResponse{Messages: []MessageRef{
			{ID: "m1", ThreadID: "t1"},
			{ID: "m2", ThreadID: "t2"},
		}})
	})

	refs, err := client.ListMessages(context.Background(), "label:demo is:unread", 25)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "m1", refs[0].ID)
}

func TestFetchMessage(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/m1", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(Message{
			ID: "m1",
			Payload: &Part{
				MimeType: "text/plain",
				Body:     Body{Data: "aGVsbG8", Size: 5},
			},
		})
	})

	msg, err := client.FetchMessage(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, "text/plain", msg.Payload.MimeType)
}

func TestMarkProcessed(t *testing.T) {
	var got modifyRequest
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/m1/modify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m1"})
	})

	require.NoError(t, client.MarkProcessed(context.Background(), "m1"))
	assert.Equal(t, []string{"Label_42"}, got.AddLabelIDs)
	assert.Equal(t, []string{"UNREAD"}, got.RemoveLabelIDs)
}

func TestListMessages_TokenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("cid", "secret", "refresh",
		WithBaseURL(srv.URL), WithTokenURL(srv.URL+"/token"))

	_, err := client.ListMessages(context.Background(), "q", 10)
	assert.Error(t, err)
}

func TestHeaderValue(t *testing.T) {
	p := &Part{Headers: []Header{
		{Name: "Content-Type", Value: `text/plain; charset="UTF-8"`},
	}}
	assert.Equal(t, `text/plain; charset="UTF-8"`, p.HeaderValue("content-type"))
	assert.Equal(t, "", p.HeaderValue("Subject"))
}
