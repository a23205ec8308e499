package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const kvTable = "wormcore_kv"

// PostgresStore is a Store backed by a single PostgreSQL table. Update transactions run
// serializable; create-once relies on the primary key and ON CONFLICT DO NOTHING.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	logger     *zap.Logger
	maxRetries uint64
	migrate    bool
}

func WithPostgresLogger(logger *zap.Logger) PostgresOption {
	return func(c *postgresConfig) {
		c.logger = logger
	}
}

// WithConnectRetries sets how often connecting is retried with exponential backoff.
func WithConnectRetries(n uint64) PostgresOption {
	return func(c *postgresConfig) {
		c.maxRetries = n
	}
}

// WithoutMigrations skips applying the embedded schema migrations.
func WithoutMigrations() PostgresOption {
	return func(c *postgresConfig) {
		c.migrate = false
	}
}

// OpenPostgres connects to url (postgres://...) and applies the embedded migrations.
func OpenPostgres(ctx context.Context, url string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg := &postgresConfig{logger: zap.NewNop(), maxRetries: 5, migrate: true}
	for _, o := range opts {
		o(cfg)
	}

	var conn *sqlx.DB
	connect := func() error {
		var err error
		conn, err = sqlx.ConnectContext(ctx, "pgx", url)
		if err != nil {
			cfg.logger.Warn("failed to connect to postgres, retrying", zap.Error(err))
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.maxRetries), ctx)
	if err := backoff.Retry(connect, b); err != nil {
		return nil, fmt.Errorf("can't connect to postgres database: %w", err)
	}
	conn.SetMaxIdleConns(3)
	conn.SetMaxOpenConns(10)

	if cfg.migrate {
		if err := migrateUp(url); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &PostgresStore{db: conn, logger: cfg.logger}, nil
}

func migrateUp(url string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("can't load postgres migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(url))
	if err != nil {
		return fmt.Errorf("can't connect to postgres database: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("can't apply postgres database migrations: %w", err)
	}
	return nil
}

// migrateURL rewrites the scheme to the one the migrate pgx driver is registered under.
func migrateURL(url string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

func selectValueQuery(key []byte) (string, []interface{}, error) {
	return sq.Select("value").
		From(kvTable).
		Where(sq.Eq{"key": key}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func upsertQuery(key, value []byte) (string, []interface{}, error) {
	return sq.Insert(kvTable).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func insertIfAbsentQuery(key, value []byte) (string, []interface{}, error) {
	return sq.Insert(kvTable).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

type postgresTxn struct {
	ctx      context.Context
	tx       *sqlx.Tx
	writable bool
}

func (t *postgresTxn) Get(key []byte) ([]byte, error) {
	q, args, err := selectValueQuery(key)
	if err != nil {
		return nil, err
	}
	var value []byte
	if err := t.tx.GetContext(t.ctx, &value, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return value, nil
}

func (t *postgresTxn) Set(key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	q, args, err := upsertQuery(key, value)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx, q, args...); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

func (t *postgresTxn) CreateIfAbsent(key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	q, args, err := insertIfAbsentQuery(key, value)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (t *postgresTxn) Writable() bool {
	return t.writable
}

func (s *PostgresStore) View(ctx context.Context, fn func(txn Txn) error) error {
	defer observeDuration("postgres", "view")()
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, false, fn)
}

func (s *PostgresStore) Update(ctx context.Context, fn func(txn Txn) error) error {
	defer observeDuration("postgres", "update")()
	return retryConflicts(ctx, "postgres", func() error {
		return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, true, fn)
	})
}

func (s *PostgresStore) run(ctx context.Context, opts *sql.TxOptions, writable bool, fn func(txn Txn) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&postgresTxn{ctx: ctx, tx: tx, writable: writable}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to roll back transaction", zap.Error(rbErr))
		}
		if isSerializationFailure(err) {
			return ErrConflict
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
