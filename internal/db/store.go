// Package db — хранилище PostgreSQL: пользователи, курсы, расписания, занятия, отметки.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/metrics"
)

const (
	codeUniqueViolation = "23505"
	codeFKViolation     = "23503"
)

// Open — пул соединений через pgx stdlib с проверкой доступности.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(20)
	database.SetMaxIdleConns(5)
	database.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return database, nil
}

// Store реализует интерфейсы хранилищ всех сервисов.
type Store struct {
	db *sql.DB
}

func New(database *sql.DB) *Store { return &Store{db: database} }

func (s *Store) DB() *sql.DB { return s.db }

// Ping — проверка БД для /healthz, латентность пишется в метрику.
func (s *Store) Ping(ctx context.Context) error {
	t0 := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	metrics.ObserveDBPing(time.Since(t0))
	return nil
}

// sqlState — код ошибки PostgreSQL от любого из драйверов (pgx или lib/pq).
func sqlState(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := sqlState(err)
	return code == codeUniqueViolation
}

// mapErr переводит ошибки драйвера в apperr; what — что искали (для NotFound).
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.NotFound, "%s не найден(о)", what)
	}
	switch code, constraint := sqlState(err); code {
	case codeUniqueViolation:
		return apperr.Wrap(apperr.ConstraintViolation, "нарушено ограничение уникальности "+constraint, err)
	case codeFKViolation:
		return apperr.Wrap(apperr.ConstraintViolation, "есть связанные записи ("+constraint+")", err)
	}
	return err
}

// withTx — транзакция READ COMMITTED с откатом при ошибке.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func execOne(ctx context.Context, q interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, what, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Newf(apperr.NotFound, "%s не найден(о)", what)
	}
	return nil
}

// dateArg — DATE передаётся строкой, чтобы драйвер не сдвинул день по таймзоне.
func dateArg(t time.Time) string { return t.Format("2006-01-02") }

// dateOnly нормализует прочитанную DATE к полуночи UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
