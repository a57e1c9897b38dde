package ndjson

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type record struct {
	Kind  string  `json:"kind"`
	Seq   int     `json:"seq"`
	Spend float64 `json:"spend,omitempty"`
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	logger := discardLogger()

	encoder := NewEncoder(&buf, logger)
	decoder := NewDecoder(&buf, logger)

	records := []record{
		{Kind: "run_header", Seq: 0},
		{Kind: "audit_entry", Seq: 1, Spend: 330},
		{Kind: "decision", Seq: 2, Spend: 357.5},
	}
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			t.Fatalf("Encode(%+v) error = %v", r, err)
		}
	}

	for i, want := range records {
		var got record
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d error = %v", i, err)
		}
		if got != want {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}

	var extra record
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end = %v, want io.EOF", err)
	}
}

func TestEncodeOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf, discardLogger())

	for i := 0; i < 3; i++ {
		if err := encoder.Encode(record{Kind: "audit_entry", Seq: i}); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Error("output must end with a newline")
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("got %d lines, want 3", len(lines))
	}
}

func TestEncodeRejectsOversizedRecord(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf, discardLogger())

	huge := struct {
		Data string `json:"data"`
	}{Data: strings.Repeat("x", MaxMessageSize+1)}

	if err := encoder.Encode(huge); err == nil {
		t.Error("Encode() should reject a record over the size limit")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for a rejected record")
	}
}

func TestDecodeSkipsEmptyLines(t *testing.T) {
	input := "{\"kind\":\"run_header\",\"seq\":0}\n\n\n{\"kind\":\"decision\",\"seq\":1}\n"
	decoder := NewDecoder(strings.NewReader(input), discardLogger())

	var first, second record
	if err := decoder.Decode(&first); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := decoder.Decode(&second); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if first.Kind != "run_header" || second.Kind != "decision" {
		t.Errorf("got %+v then %+v", first, second)
	}
}

func TestDecodeMalformedLine(t *testing.T) {
	decoder := NewDecoder(strings.NewReader("not json\n"), discardLogger())

	var r record
	err := decoder.Decode(&r)
	if err == nil {
		t.Fatal("Decode() should fail on malformed JSON")
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error should name the line: %v", err)
	}
	if decoder.LineNum() != 1 {
		t.Errorf("LineNum() = %d, want 1", decoder.LineNum())
	}
}
