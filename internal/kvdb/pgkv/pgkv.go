// Package pgkv is a reference implementation of kvdb.Client backed by
// PostgreSQL. It maps namespace/set to one table named <namespace>_<set>
// and stores each record's bins as keys of a single jsonb column, keyed by
// an integer key. It
// exists to give the pgx dependency stack a real concrete caller while
// keeping the benchmark core entirely free of any database import.
package pgkv

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/logging"
)

// Config describes how to reach and pool connections to the cluster.
type Config struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Client implements kvdb.Client against a pgxpool.Pool.
type Client struct {
	pool   *pgxpool.Pool
	log    logging.Logger
	table  string
}

// Connect builds the pool, verifies connectivity with a ping, and ensures
// the backing table exists.
func Connect(ctx context.Context, cfg Config, namespace, set string, log logging.Logger) (*Client, error) {
	connString := buildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "pgkv: parse connection config")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgkv: create pool")
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pgkv: ping")
	}

	table := fmt.Sprintf("%s_%s", namespace, set)
	createStmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (key BIGINT PRIMARY KEY, bins JSONB NOT NULL DEFAULT '{}')`,
		table,
	)
	if _, err := pool.Exec(connectCtx, createStmt); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pgkv: ensure table")
	}

	log.Info("connected to reference store", zap.String("table", table))

	return &Client{pool: pool, log: log, table: table}, nil
}

func (c *Client) Put(ctx context.Context, _ kvdb.Policy, key kvdb.Key, bin string, value any) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %q (key, bins) VALUES ($1, jsonb_build_object($2::text, $3::text))
		 ON CONFLICT (key) DO UPDATE SET bins = %q.bins || jsonb_build_object($2::text, $3::text)`,
		c.table, c.table,
	)
	_, err := c.pool.Exec(ctx, stmt, key.Value, bin, fmt.Sprintf("%v", value))
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, _ kvdb.Policy, key kvdb.Key, bin string) (*kvdb.Record, error) {
	stmt := fmt.Sprintf(`SELECT bins -> $1 FROM %q WHERE key = $2`, c.table)
	row := c.pool.QueryRow(ctx, stmt, bin, key.Value)
	var v *string
	if err := row.Scan(&v); err != nil {
		return nil, classify(err)
	}
	rec := &kvdb.Record{Bins: map[string]any{}}
	if v != nil {
		rec.Bins[bin] = *v
	}
	return rec, nil
}

func (c *Client) BatchGet(ctx context.Context, policy kvdb.Policy, keys []kvdb.Key, bin string) ([]*kvdb.Record, error) {
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
	go func() { done(c.Put(ctx, policy, key, bin, value)) }()
}

func (c *Client) GetAsync(ctx context.Context, policy kvdb.Policy, key kvdb.Key, bin string, done kvdb.CompletionFunc) {
	go func() {
		_, err := c.Get(ctx, policy, key, bin)
		done(err)
	}()
}

func (c *Client) BatchGetAsync(ctx context.Context, policy kvdb.Policy, keys []kvdb.Key, bin string, done kvdb.CompletionFunc) {
	go func() {
		_, err := c.BatchGet(ctx, policy, keys, bin)
		done(err)
	}()
}

func (c *Client) Close(_ context.Context) error {
	c.pool.Close()
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &kvdb.ClientError{Kind: kvdb.ErrTimeout, Err: err}
	}
	return &kvdb.ClientError{Kind: kvdb.ErrOther, Err: err}
}

func buildConnString(cfg Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, sslMode,
	)
}
