package db

import (
	"context"
	"testing"
)

func TestTxFromContext_Absent(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected no transaction, got %v", tx)
	}
}

func TestConn_FallsBackToPool(t *testing.T) {
	// a nil pool is returned as-is when no transaction is active
	q := Conn(context.Background(), nil)
	if q == nil {
		t.Fatal("expected a non-nil Queryable wrapping the pool")
	}
}
