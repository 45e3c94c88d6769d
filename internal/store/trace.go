package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/gammafit/internal/backend"
)

// traceHeader is the first line of a trace file.
type traceHeader struct {
	Columns []string `json:"columns"`
}

// traceEntry is one statistic evaluation, serialized as a JSON line.
type traceEntry struct {
	Call      int       `json:"call"`
	TotalStat float64   `json:"total_stat"`
	Factors   []float64 `json:"factors"`
}

// WriteTrace writes an optimizer trace as JSONL: a header line with the
// column names followed by one line per evaluation. The write is atomic.
func WriteTrace(path string, trace *backend.Trace) error {
	if trace == nil {
		return fmt.Errorf("trace is nil")
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	writer := bufio.NewWriterSize(file, 64*1024)
	encode := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := writer.Write(data); err != nil {
			return err
		}
		return writer.WriteByte('\n')
	}

	writeErr := encode(traceHeader{Columns: trace.Columns})
	for _, row := range trace.Rows {
		if writeErr != nil {
			break
		}
		writeErr = encode(traceEntry{Call: row.Call, TotalStat: row.TotalStat, Factors: row.Factors})
	}
	if writeErr == nil {
		writeErr = writer.Flush()
	}
	if err := file.Close(); writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write trace: %w", writeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename trace file: %w", err)
	}
	return nil
}

// ReadTrace reads a trace file written by WriteTrace.
func ReadTrace(path string) (*backend.Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace header: %w", err)
		}
		return nil, io.ErrUnexpectedEOF
	}
	var header traceHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("failed to parse trace header: %w", err)
	}

	trace := &backend.Trace{Columns: header.Columns}
	for scanner.Scan() {
		var entry traceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to parse trace entry: %w", err)
		}
		trace.Rows = append(trace.Rows, backend.TraceRow{
			Call:      entry.Call,
			TotalStat: entry.TotalStat,
			Factors:   entry.Factors,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan trace: %w", err)
	}
	return trace, nil
}
