package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
)

// DB - минимальный контракт пула pgx, используемый репозиториями.
// Ему удовлетворяет *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// translateStoreError отображает инфраструктурные ошибки Postgres в доменные:
// сбои сериализации и дедлоки - в ErrConflict (координатор повторит транзакцию),
// ошибки класса соединения и недоступность сервера - в ErrStoreUnavailable.
func translateStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected:
			return fmt.Errorf("%s: %w", pgErr.Code, models.ErrConflict)
		case pgerrcode.IsConnectionException(pgErr.Code):
			return fmt.Errorf("%s: %w", pgErr.Code, models.ErrStoreUnavailable)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", err, models.ErrStoreUnavailable)
	}
	return err
}
