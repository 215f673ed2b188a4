package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "osm-eval/backend/pkg/errors"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"普通错误", errors.New("boom"), false},
		{"事务冲突", pkgerrors.ErrTransactionConflict, true},
		{"包装后的事务冲突", fmt.Errorf("lease: %w", pkgerrors.ErrTransactionConflict), true},
		{"串行化失败", &pgconn.PgError{Code: "40001"}, true},
		{"死锁", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"唯一约束", &pgconn.PgError{Code: "23505"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v，期望 %v", tc.err, got, tc.want)
			}
		})
	}
}
