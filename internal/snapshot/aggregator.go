package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/helios-node/helios/internal/certchain"
	"github.com/helios-node/helios/internal/transport"
)

// Aggregator talks to a snapshot aggregator service. It also implements
// certchain.Provider so chain validation can follow certificate references
// straight from the same endpoint.
type Aggregator struct {
	client  *transport.Client
	baseURL string
}

// NewAggregator points at an aggregator base URL, e.g. the network preset's
// endpoint.
func NewAggregator(client *transport.Client, baseURL string) *Aggregator {
	return &Aggregator{client: client, baseURL: baseURL}
}

// ListSnapshots returns the published snapshots, newest first.
func (a *Aggregator) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	if err := a.client.GetJSON(ctx, a.baseURL+"/artifact/snapshots", &out); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Snapshot fetches a single snapshot record by digest.
func (a *Aggregator) Snapshot(ctx context.Context, digest string) (*Snapshot, error) {
	var out Snapshot
	if err := a.client.GetJSON(ctx, a.baseURL+"/artifact/snapshot/"+digest, &out); err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", digest, err)
	}
	return &out, nil
}

// Certificate implements certchain.Provider.
func (a *Aggregator) Certificate(ctx context.Context, hash string) (*certchain.Certificate, error) {
	var out certchain.Certificate
	if err := a.client.GetJSON(ctx, a.baseURL+"/certificate/"+hash, &out); err != nil {
		return nil, fmt.Errorf("fetch certificate %s: %w", hash, err)
	}
	return &out, nil
}
