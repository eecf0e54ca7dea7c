// Package reports renders ledger exports asynchronously and stores the
// resulting artifacts in a blob backend.
package reports

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockledger/internal/blob"
	"stockledger/internal/core"
)

// ExportFormat identifies an artifact encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ExportStatus tracks an export job through its lifecycle.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// Report names understood by the worker.
const (
	ReportOrders   = "orders"
	ReportProducts = "products"
	ReportDebts    = "debts"
)

// ExportInput describes a requested export.
type ExportInput struct {
	Report      string
	Formats     []ExportFormat
	Filter      core.OrderFilter
	RequestedBy string
}

// ExportArtifact points at one rendered artifact in the blob store.
type ExportArtifact struct {
	Key         string       `json:"key"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ExportRecord is the job ledger entry for one export request.
type ExportRecord struct {
	ID          string           `json:"id"`
	Report      string           `json:"report"`
	Formats     []ExportFormat   `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
}

func (r ExportRecord) clone() ExportRecord {
	out := r
	out.Formats = append([]ExportFormat(nil), r.Formats...)
	out.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// Worker processes export jobs sequentially off an in-memory queue.
type Worker struct {
	svc   *core.Service
	blobs blob.Store
	audit AuditLog
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*ExportRecord
	inputs  map[string]ExportInput
	queue   chan string
	started bool
}

// NewWorker constructs a stopped worker. A nil audit log is replaced with a
// no-op implementation.
func NewWorker(svc *core.Service, blobs blob.Store, audit AuditLog) *Worker {
	if audit == nil {
		audit = noopAuditLog{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		svc:    svc,
		blobs:  blobs,
		audit:  audit,
		now:    func() time.Time { return time.Now().UTC() },
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*ExportRecord),
		inputs: make(map[string]ExportInput),
		queue:  make(chan string, 64),
	}
}

// Start launches the processing loop. Calling Start twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the loop to halt and waits for it to exit or the context to
// end. The queue channel is never closed, so Enqueue calls racing Stop fail
// cleanly instead of panicking.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	w.started = false
	w.mu.Unlock()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueExport validates the request and queues it for processing.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	switch input.Report {
	case ReportOrders, ReportProducts, ReportDebts:
	default:
		return ExportRecord{}, fmt.Errorf("unknown report %q", input.Report)
	}
	if len(input.Formats) == 0 {
		return ExportRecord{}, fmt.Errorf("at least one format is required")
	}
	for _, format := range input.Formats {
		switch format {
		case FormatJSON, FormatCSV:
		default:
			return ExportRecord{}, fmt.Errorf("unsupported format %q", format)
		}
	}
	if w.blobs == nil {
		return ExportRecord{}, fmt.Errorf("no blob store configured")
	}

	record := &ExportRecord{
		ID:          uuid.NewString(),
		Report:      input.Report,
		Formats:     append([]ExportFormat(nil), input.Formats...),
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		RequestedAt: w.now(),
	}

	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return ExportRecord{}, fmt.Errorf("worker is not running")
	}
	w.jobs[record.ID] = record
	w.inputs[record.ID] = input
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		delete(w.inputs, record.ID)
		w.mu.Unlock()
		return ExportRecord{}, fmt.Errorf("export queue full")
	}

	w.audit.Record(ctx, AuditEntry{
		ExportID:   record.ID,
		Report:     record.Report,
		Status:     ExportStatusQueued,
		OccurredAt: record.RequestedAt,
	})
	return record.clone(), nil
}

// GetExport returns a copy of the record for the given id.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.clone(), true
}

// ListExports returns all records ordered by request time, newest first.
func (w *Worker) ListExports() []ExportRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ExportRecord, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}

func (w *Worker) process(id string) {
	ctx := context.Background()
	w.setStatus(ctx, id, ExportStatusRunning, "")

	w.mu.Lock()
	input, ok := w.inputs[id]
	w.mu.Unlock()
	if !ok {
		w.fail(ctx, id, "export input missing")
		return
	}

	table, err := w.buildTable(ctx, input)
	if err != nil {
		w.fail(ctx, id, err.Error())
		return
	}

	var artifacts []ExportArtifact
	for _, format := range input.Formats {
		payload, contentType, err := renderTable(format, table)
		if err != nil {
			w.fail(ctx, id, err.Error())
			return
		}
		key := fmt.Sprintf("exports/%s/%s.%s", id, input.Report, format)
		info, err := w.blobs.Put(ctx, key, payloadReader(payload), blob.PutOptions{ContentType: contentType})
		if err != nil {
			w.fail(ctx, id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, ExportArtifact{
			Key:         key,
			Format:      format,
			ContentType: contentType,
			Size:        info.Size,
			CreatedAt:   w.now(),
		})
	}
	w.succeed(ctx, id, artifacts)
}

func (w *Worker) setStatus(ctx context.Context, id string, status ExportStatus, detail string) {
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = status
	}
	var report string
	if ok {
		report = record.Report
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ExportID:   id,
		Report:     report,
		Status:     status,
		Detail:     detail,
		OccurredAt: w.now(),
	})
}

func (w *Worker) fail(ctx context.Context, id, message string) {
	now := w.now()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = ExportStatusFailed
		record.Error = message
		record.CompletedAt = &now
	}
	var report string
	if ok {
		report = record.Report
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ExportID:   id,
		Report:     report,
		Status:     ExportStatusFailed,
		Detail:     message,
		OccurredAt: now,
	})
}

func (w *Worker) succeed(ctx context.Context, id string, artifacts []ExportArtifact) {
	now := w.now()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = ExportStatusSucceeded
		record.Artifacts = artifacts
		record.CompletedAt = &now
	}
	var report string
	if ok {
		report = record.Report
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ExportID:   id,
		Report:     report,
		Status:     ExportStatusSucceeded,
		OccurredAt: now,
	})
}
