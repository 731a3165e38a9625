package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportSuccess(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"result":"Success"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", time.Second)

	values := url.Values{}
	values.Set("app_key", "k")
	values.Set("begin_session", "1")

	assert.True(t, tr.Send(context.Background(), values))
	require.NotNil(t, got)
	assert.Equal(t, "/i", got.URL.Path)
	assert.Equal(t, "k", got.URL.Query().Get("app_key"))
	assert.Equal(t, "1", got.URL.Query().Get("begin_session"))
}

func TestHTTPTransportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "unparsable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "wrong result field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"Rejected"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			tr := NewHTTPTransport(srv.URL, "", time.Second)
			assert.False(t, tr.Send(context.Background(), url.Values{"app_key": {"k"}}))
		})
	}
}

func TestHTTPTransportNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nobody listening

	tr := NewHTTPTransport(srv.URL, "", time.Second)
	assert.False(t, tr.Send(context.Background(), url.Values{"app_key": {"k"}}))
}

func TestHTTPTransportChecksum(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"result":"Success"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "pepper", time.Second)

	values := url.Values{}
	values.Set("app_key", "k")
	require.True(t, tr.Send(context.Background(), values))

	sum := sha256.Sum256([]byte(values.Encode() + "pepper"))
	assert.Equal(t, hex.EncodeToString(sum[:]), gotQuery.Get("checksum256"))
}
