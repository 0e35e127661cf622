// Package mockkv is an in-memory kvdb.Client test double used by the
// worker and orchestrator test suites, standing in for a real cluster
// connection.
package mockkv

import (
	"context"
	"sync"

	"github.com/kvbench/kvbench/internal/kvdb"
)

// Client is a goroutine-safe in-memory implementation of kvdb.Client.
// FailEvery, when non-zero, makes every Nth call (the Nth, 2Nth, ...) fail
// with the configured FailKind, for exercising timeout/error handling. A
// BatchGet counts as one call plus one call per key.
type Client struct {
	mu        sync.Mutex
	store     map[int64]map[string]any
	calls     int64
	FailEvery int64
	FailKind  kvdb.ErrorKind
}

// New returns an empty mock store.
func New() *Client {
	return &Client{store: make(map[int64]map[string]any)}
}

func (c *Client) shouldFail() bool {
	if c.FailEvery == 0 {
		return false
	}
	c.calls++
	return c.calls%c.FailEvery == 0
}

func (c *Client) Put(_ context.Context, _ kvdb.Policy, key kvdb.Key, bin string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldFail() {
		return &kvdb.ClientError{Kind: c.FailKind}
	}
	rec, ok := c.store[key.Value]
	if !ok {
		rec = make(map[string]any)
		c.store[key.Value] = rec
	}
	rec[bin] = value
	return nil
}

func (c *Client) Get(_ context.Context, _ kvdb.Policy, key kvdb.Key, bin string) (*kvdb.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldFail() {
		return nil, &kvdb.ClientError{Kind: c.FailKind}
	}
	rec, ok := c.store[key.Value]
	if !ok {
		return &kvdb.Record{Bins: map[string]any{}}, nil
	}
	return &kvdb.Record{Bins: map[string]any{bin: rec[bin]}}, nil
}

func (c *Client) BatchGet(ctx context.Context, policy kvdb.Policy, keys []kvdb.Key, bin string) ([]*kvdb.Record, error) {
	c.mu.Lock()
	fail := c.shouldFail()
	c.mu.Unlock()
	if fail {
		return nil, &kvdb.ClientError{Kind: c.FailKind}
	}
	out := make([]*kvdb.Record, len(keys))
	for i, k := range keys {
		r, err := c.Get(ctx, policy, k, bin)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (c *Client) PutAsync(ctx context.Context, policy kvdb.Policy, key kvdb.Key, bin string, value any, done kvdb.CompletionFunc) {
	done(c.Put(ctx, policy, key, bin, value))
}

func (c *Client) GetAsync(ctx context.Context, policy kvdb.Policy, key kvdb.Key, bin string, done kvdb.CompletionFunc) {
	_, err := c.Get(ctx, policy, key, bin)
	done(err)
}

func (c *Client) BatchGetAsync(ctx context.Context, policy kvdb.Policy, keys []kvdb.Key, bin string, done kvdb.CompletionFunc) {
	_, err := c.BatchGet(ctx, policy, keys, bin)
	done(err)
}

func (c *Client) Close(context.Context) error { return nil }
