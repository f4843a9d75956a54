package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
	"github.com/deltawatch-lab/deltawatch/internal/core/watermark"
	_ "github.com/lib/pq" // Register postgres driver
)

const connectPingTimeout = 5 * time.Second

// SourceAdapter implements storage.Opener over the monitored PostgreSQL database.
type SourceAdapter struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewSourceAdapter opens the monitored database.
//
// An unreachable database is not fatal: the failure is logged and every pass will
// report an empty summary until the database comes back.
func NewSourceAdapter(dsn string, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*SourceAdapter, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, storage.ErrNotConfigured
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("[Postgres] Source connection pool configured",
		"max_open_conns", maxOpenConns,
		"max_idle_conns", maxIdleConns,
		"query_timeout", queryTimeout)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		slog.Warn("[Postgres] Source database unreachable at startup", "error", err)
	}

	return NewSourceAdapterFromDB(db, queryTimeout), nil
}

// NewSourceAdapterFromDB wraps an existing pool.
func NewSourceAdapterFromDB(db *sql.DB, queryTimeout time.Duration) *SourceAdapter {
	return &SourceAdapter{db: db, queryTimeout: queryTimeout}
}

// Open reserves one connection for a whole extraction pass.
func (a *SourceAdapter) Open(ctx context.Context) (storage.Session, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire source connection: %w", err)
	}
	return &session{conn: conn, queryTimeout: a.queryTimeout}, nil
}

// Ping checks connectivity for health reporting.
func (a *SourceAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the pool.
func (a *SourceAdapter) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close source database: %w", err)
	}
	slog.Info("[Postgres] Source adapter closed gracefully")
	return nil
}

type session struct {
	conn         *sql.Conn
	queryTimeout time.Duration
}

func (s *session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *session) CountByGroup(ctx context.Context, src source.Validated, w watermark.Window) ([]summary.GroupCount, error) {
	query, err := buildCountByGroupQuery(src)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, query, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", src.Name(), err)
	}
	defer rows.Close()

	var groups []summary.GroupCount
	for rows.Next() {
		var g summary.GroupCount
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", src.Name(), err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", src.Name(), err)
	}
	return groups, nil
}

func (s *session) CountAfterID(ctx context.Context, src source.Validated, lastID int64) ([]summary.GroupCount, int64, error) {
	query, err := buildCountAfterIDQuery(src)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, query, lastID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s: %w", src.Name(), err)
	}
	defer rows.Close()

	maxID := lastID
	var groups []summary.GroupCount
	for rows.Next() {
		var (
			g        summary.GroupCount
			groupMax int64
		)
		if err := rows.Scan(&g.Key, &g.Count, &groupMax); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s row: %w", src.Name(), err)
		}
		if groupMax > maxID {
			maxID = groupMax
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating %s rows: %w", src.Name(), err)
	}
	return groups, maxID, nil
}

func (s *session) MaxID(ctx context.Context, src source.Validated) (int64, error) {
	query, err := buildMaxIDQuery(src)
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var maxID int64
	if err := s.conn.QueryRowContext(ctx, query).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to read max id of %s: %w", src.Name(), err)
	}
	return maxID, nil
}

func (s *session) CountClassified(ctx context.Context, src source.Validated, w watermark.Window) ([]summary.ClassifiedCount, error) {
	query, err := buildCountClassifiedQuery(src)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, query, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", src.Name(), err)
	}
	defer rows.Close()

	keyCount := len(src.GroupColumns())
	var out []summary.ClassifiedCount
	for rows.Next() {
		keys := make([]string, keyCount)
		dest := make([]interface{}, 0, keyCount+2)
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		var c summary.ClassifiedCount
		dest = append(dest, &c.Processed, &c.Count)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", src.Name(), err)
		}
		c.Key = strings.Join(keys, " / ")
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", src.Name(), err)
	}
	return out, nil
}

func (s *session) Close() error {
	return s.conn.Close()
}

var _ storage.Opener = (*SourceAdapter)(nil)
