package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

func TestStubDBStoresAndQueriesBuckets(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	_, err := conn.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2)", []driver.NamedValue{
		{Value: "products"},
		{Value: []byte(`{"p1":{}}`)},
	})
	if err != nil {
		t.Fatalf("ExecContext insert: %v", err)
	}
	if string(conn.Buckets["products"]) != `{"p1":{}}` {
		t.Fatalf("expected payload stored, got %q", conn.Buckets["products"])
	}

	conn.Seed("orders", []byte(`{}`))
	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 2)
	seen := map[string]bool{}
	for {
		err := rows.Next(dest)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		bucket, ok := dest[0].(string)
		if !ok {
			t.Fatalf("bucket column type %T", dest[0])
		}
		seen[bucket] = true
	}
	if !seen["products"] || !seen["orders"] {
		t.Fatalf("expected both buckets, got %v", seen)
	}
}

func TestStubDBFailureToggles(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailPing = false

	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false

	conn.FailCommit = true
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}
}
