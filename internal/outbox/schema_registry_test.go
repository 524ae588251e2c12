package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaReturnsLatestWhenPresent(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		require.Equal(t, "/subjects/activity_created-value/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":17,"version":2}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL+"/").EnsureSchema(context.Background(), "activity_created-value", activityCreatedSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Zero(t, posts.Load())
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPost:
			require.Equal(t, "/subjects/attendee_left-value/versions", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "JSON", body["schemaType"])
			require.Equal(t, attendeeLeftSchema, body["schema"])
			_, _ = w.Write([]byte(`{"id":5}`))
		}
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "attendee_left-value", attendeeLeftSchema)
	require.NoError(t, err)
	require.Equal(t, 5, id)
}

func TestEnsureSchemaDoesNotRegisterOnServerError(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_deleted-value", activityDeletedSchema)
	require.ErrorContains(t, err, "status 503")
	require.Zero(t, posts.Load())
}
