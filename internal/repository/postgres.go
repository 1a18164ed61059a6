// Package repository содержит реализацию доступа к данным в PostgreSQL.
//
// Каждый сервис владеет собственным набором таблиц и накатывает только свои
// миграции; межсервисных транзакций нет.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Сентинельные ошибки доменного уровня. Обработчики сопоставляют их
// с HTTP-статусами через errors.Is.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderDeleted        = errors.New("order has been deleted")
	ErrItemNotFound        = errors.New("item not found")
	ErrItemExists          = errors.New("item already exists")
	ErrCredentialExists    = errors.New("credential already exists")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrUserStatusUnchanged = errors.New("user already in target status")
	ErrCardNotFound        = errors.New("payment card not found")
)

// Postgres предоставляет доступ к хранилищу данных одного сервиса.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт пул соединений и накатывает миграции указанного сервиса.
func NewPostgres(dsn, service string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Postgres{pool: pool}

	if err := r.runMigrations(ctx, service); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *Postgres) runMigrations(ctx context.Context, service string) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations/"+service); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *Postgres) Close() error {
	r.pool.Close()
	return nil
}

// withRetry повторяет операцию при сериализационных конфликтах, дедлоках
// и обрывах соединения. Ошибки контекста не ретраятся.
func (r *Postgres) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if isRetryableError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
