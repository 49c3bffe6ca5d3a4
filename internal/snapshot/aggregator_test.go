package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helios-node/helios/internal/transport"
)

func TestListSnapshotsNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agg/artifact/snapshots", r.URL.Path)
		w.Write([]byte(`[
			{"digest": "older", "created_at": "2026-07-01T00:00:00Z"},
			{"digest": "newer", "created_at": "2026-08-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	agg := NewAggregator(transport.New("test"), srv.URL+"/agg")
	list, err := agg.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "newer", list[0].Digest)
}

func TestAggregatorCertificate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agg/certificate/cert-123", r.URL.Path)
		w.Write([]byte(`{"hash": "cert-123", "previous_hash": "cert-122", "epoch": 9}`))
	}))
	defer srv.Close()

	agg := NewAggregator(transport.New("test"), srv.URL+"/agg")
	cert, err := agg.Certificate(context.Background(), "cert-123")
	require.NoError(t, err)
	require.Equal(t, "cert-123", cert.Hash)
	require.Equal(t, uint64(9), cert.Epoch)
	require.False(t, cert.IsGenesis())
}

func TestAggregatorSnapshotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	agg := NewAggregator(transport.New("test"), srv.URL)
	_, err := agg.Snapshot(context.Background(), "nope")
	require.Error(t, err)
}
