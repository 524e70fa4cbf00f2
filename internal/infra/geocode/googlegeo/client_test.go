package googlegeo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReverseGeocodeReturnsFirstResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/json", r.URL.Path)
		require.Equal(t, "1.29,103.85", r.URL.Query().Get("latlng"))
		require.Equal(t, "secret", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Marina Bay, Singapore"},{"formatted_address":"Singapore"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	name, err := client.ReverseGeocode(context.Background(), 1.29, 103.85)
	require.NoError(t, err)
	require.Equal(t, "Marina Bay, Singapore", name)
}

func TestReverseGeocodeNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	_, err := client.ReverseGeocode(context.Background(), 0, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ZERO_RESULTS")
}

func TestReverseGeocodeMissingKey(t *testing.T) {
	client := NewClient("", "", time.Second)
	_, err := client.ReverseGeocode(context.Background(), 1.0, 2.0)
	require.Error(t, err)
}

func TestReverseGeocodeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	_, err := client.ReverseGeocode(context.Background(), 1.0, 2.0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=500")
}
