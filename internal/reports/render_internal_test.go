package reports

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/blob"
	blobcore "stockledger/internal/blob/core"
	"stockledger/internal/core"
)

func TestFormatValueVariants(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"time", at, at.Format(time.RFC3339)},
		{"decimal", decimal.RequireFromString("32.50"), "32.5"},
		{"string", "plain", "plain"},
		{"float32", float32(1.5), "1.5"},
		{"float64", 2.5, "2.5"},
		{"int", 7, "7"},
		{"int64", int64(9), "9"},
		{"bool", true, "true"},
		{"fallback", []int{1, 2}, "[1 2]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(tc.in); got != tc.want {
				t.Fatalf("formatValue(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRenderTableUnsupportedFormat(t *testing.T) {
	if _, _, err := renderTable(ExportFormat("xml"), table{}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestRenderCSVEmptyTable(t *testing.T) {
	payload, contentType, err := renderCSV(table{Columns: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if contentType != "text/csv" {
		t.Fatalf("content type = %q", contentType)
	}
	if strings.TrimSpace(string(payload)) != "a,b" {
		t.Fatalf("unexpected payload: %q", payload)
	}
}

type failingBlobStore struct {
	blob.Store
}

func (failingBlobStore) Put(context.Context, string, io.Reader, blobcore.PutOptions) (blobcore.Info, error) {
	return blobcore.Info{}, fmt.Errorf("store offline")
}

func TestWorkerFailsWhenStoreRejectsArtifact(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	audit := &MemoryAuditLog{}
	worker := NewWorker(svc, failingBlobStore{Store: blob.NewMemory()}, audit)
	worker.Start()
	t.Cleanup(func() {
		_ = worker.Stop(context.Background())
	})

	record, err := worker.EnqueueExport(context.Background(), ExportInput{
		Report:  ReportProducts,
		Formats: []ExportFormat{FormatJSON},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		current, _ := worker.GetExport(record.ID)
		if current.Status == ExportStatusFailed {
			if !strings.Contains(current.Error, "store offline") {
				t.Fatalf("unexpected error: %s", current.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for failure, status %s", current.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	failed := false
	for _, entry := range audit.Entries() {
		if entry.Status == ExportStatusFailed && entry.Detail != "" {
			failed = true
		}
	}
	if !failed {
		t.Fatalf("audit missing failure entry: %+v", audit.Entries())
	}
}
