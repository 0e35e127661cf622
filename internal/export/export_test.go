package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatElapsedLayout(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond
	got := FormatElapsed(d)
	if !strings.HasPrefix(got, "01:02:03.") {
		t.Fatalf("unexpected layout: %s", got)
	}
}

func TestCSVWriterIncludesHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	if err := w.Write(Sample{Sequence: 1, OpType: "read"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(Sample{Sequence: 2, OpType: "write"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, "sequence") != 1 {
		t.Fatalf("expected exactly one header line, got: %s", out)
	}
}

func TestJSONWriterProducesValidArray(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewJSONWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(Sample{Sequence: 1, ElapsedMs: 5, OpType: "read", PrimaryKey: 42}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(Sample{Sequence: 2, ElapsedMs: 7, OpType: "write", PrimaryKey: 43}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}
