package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate record")
	ErrPaymentIntentUsed = errors.New("payment intent already used")
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// paymentIntentIndex is the unique index over orders.payment_intent_id.
const paymentIntentIndex = "orders_payment_intent_id_key"

type Store struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

// Options tunes the connection pool and transaction limits.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	TxTimeout    time.Duration
}

// NewStore creates a new database store
func NewStore(databaseURL string, opts Options) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, opts.TxTimeout), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, txTimeout time.Duration) *Store {
	return &Store{db: db, txTimeout: txTimeout}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a single transaction. The transaction is committed
// only if fn returns nil; any error or panic rolls it back and the
// connection goes back to the pool either way.
func (s *Store) WithTx(ctx context.Context, fn func(tx OrderTx) error) (err error) {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.txTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", s.txTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	if err = fn(&orderTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func violatedConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
