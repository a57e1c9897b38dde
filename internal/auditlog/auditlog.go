// Package auditlog persists a committee run's audit trail as NDJSON: one
// header record, one record per pipeline stage snapshot, one decision record.
// The engine itself stays pure; the CLI owns when and where trails land.
package auditlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tablestakes/brigade/internal/committee"
	"github.com/tablestakes/brigade/internal/ndjson"
	"github.com/tablestakes/brigade/internal/plan"
)

// RecordKind discriminates trail records
type RecordKind string

const (
	RecordKindHeader   RecordKind = "run_header"
	RecordKindEntry    RecordKind = "audit_entry"
	RecordKindDecision RecordKind = "decision"
)

// RunHeader opens a trail file
type RunHeader struct {
	Kind      RecordKind   `json:"kind"`
	RunID     string       `json:"run_id"`
	Context   plan.Context `json:"context"`
	StartedAt time.Time    `json:"started_at"`
}

// EntryRecord is one audit snapshot with its position in the trail
type EntryRecord struct {
	Kind  RecordKind           `json:"kind"`
	Seq   int                  `json:"seq"`
	Entry committee.AuditEntry `json:"entry"`
}

// DecisionRecord closes a trail file
type DecisionRecord struct {
	Kind        RecordKind                `json:"kind"`
	Status      plan.Status               `json:"status"`
	Metrics     plan.Metrics              `json:"metrics"`
	Constraints plan.HardConstraintResult `json:"hard_constraints"`
	CompletedAt time.Time                 `json:"completed_at"`
}

// AuditLog appends trail records to an NDJSON file
type AuditLog struct {
	file    *os.File
	encoder *ndjson.Encoder
	logger  *slog.Logger
	mu      sync.Mutex
}

// New creates an audit log at the given path, creating parent directories
func New(path string, logger *slog.Logger) (*AuditLog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &AuditLog{
		file:    file,
		encoder: ndjson.NewEncoder(file, logger),
		logger:  logger,
	}, nil
}

// WriteResult records a complete run: header, every audit entry in order,
// then the decision.
func (l *AuditLog) WriteResult(result *committee.RunResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := RunHeader{
		Kind:      RecordKindHeader,
		RunID:     result.RunID,
		Context:   *result.Context,
		StartedAt: result.StartedAt,
	}
	if err := l.encoder.Encode(header); err != nil {
		return fmt.Errorf("failed to write run header: %w", err)
	}

	for i, entry := range result.Audit {
		record := EntryRecord{
			Kind:  RecordKindEntry,
			Seq:   i,
			Entry: entry,
		}
		if err := l.encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write audit entry %d: %w", i, err)
		}
	}

	decision := DecisionRecord{
		Kind:        RecordKindDecision,
		Status:      result.Decision.Status,
		Metrics:     result.Decision.Metrics,
		Constraints: result.Decision.HardConstraints,
		CompletedAt: result.CompletedAt,
	}
	if err := l.encoder.Encode(decision); err != nil {
		return fmt.Errorf("failed to write decision: %w", err)
	}

	return nil
}

// Close closes the trail file
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
