// Package export provides optional CSV/JSON sinks for raw per-operation
// samples. Conformance does not require this (spec.md §6 calls export
// sinks optional), but the donor's internal/results package shows the
// house convention for a results writer, so it is implemented rather than
// left out.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Sample is one recorded operation: {sequence, app_elapsed, elapsed_ms,
// op_type, function_name, primary_key}.
type Sample struct {
	Sequence     int64         `json:"sequence"`
	AppElapsed   time.Duration `json:"-"`
	ElapsedMs    uint64        `json:"elapsed_ms"`
	OpType       string        `json:"op_type"`
	FunctionName string        `json:"function_name"`
	PrimaryKey   int64         `json:"primary_key"`
}

// jsonSample mirrors Sample but encodes AppElapsed as the formatted
// hh:mm:ss.sssssss string the spec requires, instead of a raw duration.
type jsonSample struct {
	Sequence     int64  `json:"sequence"`
	AppElapsed   string `json:"app_elapsed"`
	ElapsedMs    uint64 `json:"elapsed_ms"`
	OpType       string `json:"op_type"`
	FunctionName string `json:"function_name"`
	PrimaryKey   int64  `json:"primary_key"`
}

// FormatElapsed renders d as hh:mm:ss.sssssss, locale-independent.
func FormatElapsed(d time.Duration) string {
	total := d
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second
	total -= s * time.Second
	frac := total.Seconds()
	return fmt.Sprintf("%02d:%02d:%02d.%07d", h, m, s, int64(frac*1e7))
}

// CSVWriter writes Sample rows to an underlying io.Writer.
type CSVWriter struct {
	w     *csv.Writer
	wrote bool
}

// NewCSVWriter wraps w.
func NewCSVWriter(w io.Writer) *CSVWriter { return &CSVWriter{w: csv.NewWriter(w)} }

// Write appends one sample row, writing a header on the first call.
func (c *CSVWriter) Write(s Sample) error {
	if !c.wrote {
		if err := c.w.Write([]string{"sequence", "app_elapsed", "elapsed_ms", "op_type", "function_name", "primary_key"}); err != nil {
			return err
		}
		c.wrote = true
	}
	return c.w.Write([]string{
		strconv.FormatInt(s.Sequence, 10),
		FormatElapsed(s.AppElapsed),
		strconv.FormatUint(s.ElapsedMs, 10),
		s.OpType,
		s.FunctionName,
		strconv.FormatInt(s.PrimaryKey, 10),
	})
}

// Flush flushes buffered CSV output.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// JSONWriter writes Sample rows as a JSON array, one element appended per
// call, using io.Writer framing rather than buffering the whole array.
type JSONWriter struct {
	w     io.Writer
	first bool
}

// NewJSONWriter wraps w and writes the opening '['.
func NewJSONWriter(w io.Writer) (*JSONWriter, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return nil, err
	}
	return &JSONWriter{w: w, first: true}, nil
}

// Write appends one sample to the JSON array.
func (j *JSONWriter) Write(s Sample) error {
	if !j.first {
		if _, err := io.WriteString(j.w, ","); err != nil {
			return err
		}
	}
	j.first = false
	enc := jsonSample{
		Sequence:     s.Sequence,
		AppElapsed:   FormatElapsed(s.AppElapsed),
		ElapsedMs:    s.ElapsedMs,
		OpType:       s.OpType,
		FunctionName: s.FunctionName,
		PrimaryKey:   s.PrimaryKey,
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	_, err = j.w.Write(b)
	return err
}

// Close writes the closing ']'.
func (j *JSONWriter) Close() error {
	_, err := io.WriteString(j.w, "]")
	return err
}
