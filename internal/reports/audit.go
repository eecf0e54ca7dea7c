package reports

import (
	"context"
	"sync"
	"time"
)

// AuditEntry records one export lifecycle event.
type AuditEntry struct {
	ExportID   string
	Report     string
	Status     ExportStatus
	Detail     string
	OccurredAt time.Time
}

// AuditLog receives export lifecycle events.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MemoryAuditLog retains entries in memory for tests and local runs.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record appends an entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

type noopAuditLog struct{}

func (noopAuditLog) Record(context.Context, AuditEntry) {}
