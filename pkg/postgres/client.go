// Package postgres opens the lib/pq pool read by the Postgres record source.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

const connectTimeout = 5 * time.Second

type Client struct {
	db *sql.DB
}

// Open configures the pool from cfg and verifies the server is reachable.
func Open(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reaching postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{db: db}, nil
}

// QueryReadOnly runs query inside a read-only transaction and hands the rows
// to scan. The transaction is always rolled back; sources never write.
func (c *Client) QueryReadOnly(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("beginning read-only transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()
	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

// Ping reports whether the pool can reach the server and how many
// connections it currently holds.
func (c *Client) Ping(ctx context.Context) (open int, err error) {
	if err := c.db.PingContext(ctx); err != nil {
		return 0, err
	}
	return c.db.Stats().OpenConnections, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
