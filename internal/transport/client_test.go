package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSetsAgentHeaders(t *testing.T) {
	t.Setenv("HELIOS_API_TOKEN", "s3cret")

	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := New("1.2.3")
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "helios/1.2.3", gotUA)
	require.Equal(t, "Bearer s3cret", gotAuth)
}

func TestGetRangeSendsOffset(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	c := New("dev")
	resp, err := c.GetRange(context.Background(), srv.URL, 4096)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "bytes=4096-", gotRange)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"digest": "abc"}`))
	}))
	defer srv.Close()

	var out struct {
		Digest string `json:"digest"`
	}
	c := New("dev")
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	require.Equal(t, "abc", out.Digest)
}

func TestGetJSONNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out map[string]any
	err := New("dev").GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}
