package database

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyPqCodes(t *testing.T) {
	cases := []struct {
		code string
		want ErrorClass
	}{
		{"40001", ErrorClassSerialization},
		{"40P01", ErrorClassDeadlock},
		{"55P03", ErrorClassTransient},
		{"23505", ErrorClassPermanent},
		{"23503", ErrorClassPermanent},
	}
	for _, tc := range cases {
		err := fmt.Errorf("query failed: %w", &pq.Error{Code: pq.ErrorCode(tc.code)})
		if got := ClassifyError(err); got != tc.want {
			t.Errorf("ClassifyError(pq %s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestLockTimeoutSentinelIsRetryable(t *testing.T) {
	if !IsRetryable(ErrLockTimeout) {
		t.Fatal("ErrLockTimeout must be retryable: a NOWAIT conflict on the checkout path has to re-enter WithRetry")
	}

	wrapped := fmt.Errorf("lock inventory unit: %w", ErrLockTimeout)
	if !IsRetryable(wrapped) {
		t.Error("wrapped ErrLockTimeout must stay retryable")
	}
	if ClassifyError(wrapped) != ErrorClassTransient {
		t.Errorf("ClassifyError(wrapped ErrLockTimeout) = %v, want transient", ClassifyError(wrapped))
	}
}

func TestDomainSentinelsArePermanent(t *testing.T) {
	for _, err := range []error{
		ErrInsufficientStock,
		ErrEmptyCart,
		ErrOrderNotFound,
		ErrInvalidTransition,
		sql.ErrNoRows,
	} {
		if IsRetryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}
