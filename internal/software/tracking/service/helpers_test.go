package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bus-track/internal/domain/assignment"
	"bus-track/internal/general/logger"
)

func TestRetryStoreWriteRecoversFromTransientFailure(t *testing.T) {
	log := logger.New("test")
	attempts := 0

	err := retryStoreWrite(context.Background(), log, time.Millisecond, 4*time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil after recovery", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStoreWriteNeverRetriesDomainRejection(t *testing.T) {
	log := logger.New("test")
	attempts := 0

	err := retryStoreWrite(context.Background(), log, time.Millisecond, 4*time.Millisecond, func() error {
		attempts++
		return assignment.ErrNoActiveAssignment
	})
	if !errors.Is(err, assignment.ErrNoActiveAssignment) {
		t.Fatalf("err = %v, want ErrNoActiveAssignment", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetryStoreWriteGivesUpAfterBoundedAttempts(t *testing.T) {
	log := logger.New("test")
	sentinel := errors.New("store down")
	attempts := 0

	err := retryStoreWrite(context.Background(), log, time.Millisecond, 4*time.Millisecond, func() error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the last store error", err)
	}
	if attempts != storeRetryAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, storeRetryAttempts)
	}
}

func TestRetryStoreWriteStopsOnCancelledContext(t *testing.T) {
	log := logger.New("test")
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := retryStoreWrite(ctx, log, time.Hour, time.Hour, func() error {
		attempts++
		cancel()
		return errors.New("store down")
	})
	if err == nil {
		t.Fatal("err = nil, want the last store error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 when ctx dies mid-backoff", attempts)
	}
}
