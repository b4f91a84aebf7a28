// Package postgres — tx.go содержит выполнение операций в транзакциях
// с ограниченным числом повторов при временных ошибках.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"facebrasil.com.br/gamification/internal/common"
)

// Коды ошибок PostgreSQL, которые нас интересуют
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// DBTX — общий интерфейс пула и транзакции.
// Репозитории пишут запросы против него и не знают, в транзакции они или нет.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Runner выполняет операции с БД: в транзакции, с таймаутом и повторами.
type Runner struct {
	pool     *pgxpool.Pool
	attempts uint
	interval time.Duration
	timeout  time.Duration
}

// NewRunner создаёт исполнитель операций.
//
// Параметры:
//   - attempts: максимум попыток (включая первую)
//   - interval: начальный интервал экспоненциальной задержки
//   - timeout: предельное время одной операции целиком
func NewRunner(pool *pgxpool.Pool, attempts uint, interval, timeout time.Duration) *Runner {
	if attempts == 0 {
		attempts = 1
	}
	return &Runner{pool: pool, attempts: attempts, interval: interval, timeout: timeout}
}

// Pool возвращает пул для запросов только на чтение.
func (r *Runner) Pool() *pgxpool.Pool {
	return r.pool
}

// InTx выполняет fn в одной транзакции READ COMMITTED.
//
// Операция отвязана от отмены ctx (клиент мог отключиться), но ограничена
// таймаутом: транзакция либо фиксируется целиком, либо не применяется вовсе.
// Конфликты сериализации, дедлоки и обрывы до отправки запроса повторяются.
// Доменные ошибки из fn (common.Error) возвращаются сразу, без повторов.
func (r *Runner) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.Do(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.pool, fn)
	})
}

// Do выполняет fn с таймаутом и повторами, без явной транзакции.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		log.WithFields(log.Fields{"attempt": attempt}).WithError(err).Warn("Временная ошибка БД, повторяем")
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.attempts))

	return Classify(err)
}

// IsRetryable сообщает, можно ли безопасно повторить операцию целиком.
// Повторяем только то, что PostgreSQL гарантированно не применил.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return pgconn.SafeToRetry(err)
}

// Classify превращает исчерпанные повторы в доменные ошибки хранилища.
// Доменные ошибки и nil возвращаются как есть.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *common.Error
	if errors.As(err, &domainErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %v", common.ErrStorageConflict, err)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return err
}
