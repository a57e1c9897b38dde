// Package replay reads an audit trail file back into typed records so a run
// can be inspected stage by stage after the fact.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tablestakes/brigade/internal/auditlog"
	"github.com/tablestakes/brigade/internal/checksum"
	"github.com/tablestakes/brigade/internal/ndjson"
)

// Trail is a parsed audit trail file
type Trail struct {
	Header   *auditlog.RunHeader
	Entries  []auditlog.EntryRecord
	Decision *auditlog.DecisionRecord
}

// ReadTrail reads and parses an NDJSON audit trail file
func ReadTrail(path string) (*Trail, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trail: %w", err)
	}
	defer file.Close()

	trail := &Trail{
		Entries: make([]auditlog.EntryRecord, 0),
	}

	scanner := bufio.NewScanner(file)
	// Entries carry full proposal snapshots; match the NDJSON record limit
	// rather than the 64 KiB scanner default
	buf := make([]byte, ndjson.MaxMessageSize)
	scanner.Buffer(buf, ndjson.MaxMessageSize)

	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		var envelope struct {
			Kind auditlog.RecordKind `json:"kind"`
		}

		if err := json.Unmarshal(line, &envelope); err != nil {
			return nil, fmt.Errorf("line %d: failed to parse envelope: %w", lineNum, err)
		}

		switch envelope.Kind {
		case auditlog.RecordKindHeader:
			var header auditlog.RunHeader
			if err := json.Unmarshal(line, &header); err != nil {
				return nil, fmt.Errorf("line %d: failed to parse run header: %w", lineNum, err)
			}
			trail.Header = &header

		case auditlog.RecordKindEntry:
			var record auditlog.EntryRecord
			if err := json.Unmarshal(line, &record); err != nil {
				return nil, fmt.Errorf("line %d: failed to parse audit entry: %w", lineNum, err)
			}
			trail.Entries = append(trail.Entries, record)

		case auditlog.RecordKindDecision:
			var decision auditlog.DecisionRecord
			if err := json.Unmarshal(line, &decision); err != nil {
				return nil, fmt.Errorf("line %d: failed to parse decision: %w", lineNum, err)
			}
			trail.Decision = &decision

		default:
			return nil, fmt.Errorf("line %d: unknown record kind: %s", lineNum, envelope.Kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading trail: %w", err)
	}

	if trail.Header == nil {
		return nil, fmt.Errorf("trail %s has no run header", path)
	}

	return trail, nil
}

// VerifySnapshots recomputes every entry's proposal hash against the recorded
// snapshot sum. Returns the sequence numbers that failed verification.
func (t *Trail) VerifySnapshots() []int {
	var mismatched []int
	for _, record := range t.Entries {
		if record.Entry.SnapshotSHA256 == "" {
			continue
		}
		if err := checksum.VerifyJSON(record.Entry.Proposal, record.Entry.SnapshotSHA256); err != nil {
			mismatched = append(mismatched, record.Seq)
		}
	}
	return mismatched
}
