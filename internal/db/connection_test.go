package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubTx struct {
	pgx.Tx
	rollbackErr error
	rolledBack  bool
	committed   bool
}

func (t *stubTx) Rollback(context.Context) error {
	t.rolledBack = true
	return t.rollbackErr
}

func (t *stubTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

type stubBeginner struct {
	tx *stubTx
}

func (b stubBeginner) Begin(context.Context) (pgx.Tx, error) {
	return b.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	tx := &stubTx{}
	if err := WithTx(context.Background(), stubBeginner{tx}, nil, func(pgx.Tx) error { return nil }); err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestWithTxLogsRollbackFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	insertErr := errors.New("insert failed")
	connErr := errors.New("conn closed")
	tx := &stubTx{rollbackErr: connErr}

	err := WithTx(context.Background(), stubBeginner{tx}, zap.New(core), func(pgx.Tx) error { return insertErr })
	if !errors.Is(err, insertErr) || !errors.Is(err, connErr) {
		t.Fatalf("expected both errors to be wrapped, got %v", err)
	}
	if tx.committed {
		t.Fatal("transaction committed after failure")
	}

	entries := logs.FilterMessage("failed to rollback transaction").All()
	if len(entries) != 1 {
		t.Fatalf("expected one rollback log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[0].Level)
	}
}

func TestWithTxNilLoggerRollsBack(t *testing.T) {
	tx := &stubTx{rollbackErr: errors.New("conn closed")}
	err := WithTx(context.Background(), stubBeginner{tx}, nil, func(pgx.Tx) error { return errors.New("boom") })
	if err == nil || !tx.rolledBack {
		t.Fatalf("err=%v rolledBack=%v", err, tx.rolledBack)
	}
}
