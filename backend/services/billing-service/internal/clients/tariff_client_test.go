package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTariffClientResolve(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tariff/resolve/cust 1":
			_, _ = w.Write([]byte(`{"customer_id":"cust 1","rate":"6.5","source":"concession","source_key":"MAK"}`))
		case "/tariff/resolve/ghost":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}
	}))
	defer srv.Close()

	client := NewTariffClient(srv.URL+"/", NewDefaultHTTPClient(time.Second))
	ctx := WithAuthorization(context.Background(), "Bearer abc")

	resolved, err := client.Resolve(ctx, "cust 1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "/tariff/resolve/cust%201", gotPath)
	assert.Equal(t, "6.5", resolved.Rate.String())
	assert.Equal(t, "concession", resolved.Source)
	assert.Equal(t, "MAK", resolved.SourceKey)

	_, err = client.Resolve(ctx, "ghost")
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = client.Resolve(ctx, "other")
	assert.ErrorIs(t, err, ErrTariffUnavailable)
	assert.Contains(t, err.Error(), "boom")
}

func TestTariffClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewTariffClient(url, NewDefaultHTTPClient(time.Second))
	_, err := client.Resolve(context.Background(), "cust-1")
	assert.ErrorIs(t, err, ErrTariffUnavailable)
}

func TestTariffClientRejectsBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rate":"0"}`))
	}))
	defer srv.Close()

	_, err := NewTariffClient(srv.URL, NewDefaultHTTPClient(time.Second)).Resolve(context.Background(), "cust-1")
	assert.ErrorIs(t, err, ErrTariffUnavailable)
}
