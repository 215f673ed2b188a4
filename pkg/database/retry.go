package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "osm-eval/backend/pkg/errors"
)

// PostgreSQL 可重试错误码
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsRetryable 判断事务错误是否可通过重新执行整个事务解决
// 包括：串行化失败、死锁检测、以及业务层条件更新未命中时主动返回的 ErrTransactionConflict
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pkgerrors.ErrTransactionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}
