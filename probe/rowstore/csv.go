// Package rowstore reads and writes the flat, header-delimited CSV tables that connect the
// collector, scorer and aggregator stages.
package rowstore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Table is a fully loaded CSV file: one header row plus data rows.
// Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of column name in the header, or -1.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadTable loads the CSV at path. A missing file surfaces as an error wrapping fs.ErrNotExist.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("ReadTable: %w", err)
	}
	defer f.Close()

	t, err := DecodeTable(f)
	if err != nil {
		return Table{}, fmt.Errorf("ReadTable %s: %w", path, err)
	}
	return t, nil
}

// ReadHeader returns only the header row of the CSV at path.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadHeader: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadHeader %s: %w", path, err)
	}
	return header, nil
}

// DecodeTable parses CSV from r. Short rows are padded with empty cells and long rows are cut
// to the header width.
func DecodeTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, errors.New("empty file (no header row)")
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}, nil
}

// EncodeTable renders header and rows as CSV bytes.
func EncodeTable(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTableAtomic replaces path with the given table in a single rename.
func WriteTableAtomic(path string, header []string, rows [][]string) error {
	b, err := EncodeTable(header, rows)
	if err != nil {
		return fmt.Errorf("WriteTableAtomic: %w", err)
	}
	if err := WriteFileAtomicSameDir(path, b, 0o644); err != nil {
		return fmt.Errorf("WriteTableAtomic: %w", err)
	}
	return nil
}

// Appender appends rows to a CSV file one at a time, syncing each row to disk before returning.
type Appender struct {
	f *os.File
	w *csv.Writer
}

// OpenAppender opens path for appending. The header is written only when the file is new or
// empty; an existing file keeps the header it already has.
func OpenAppender(path string, header []string) (*Appender, error) {
	if path == "" {
		return nil, errors.New("OpenAppender: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("OpenAppender: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("OpenAppender: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("OpenAppender: stat: %w", err)
	}

	a := &Appender{f: f, w: csv.NewWriter(f)}
	if fi.Size() == 0 {
		if err := a.Append(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("OpenAppender: header: %w", err)
		}
	}
	return a, nil
}

// Append writes one row and fsyncs it.
func (a *Appender) Append(row []string) error {
	if err := a.w.Write(row); err != nil {
		return err
	}
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		return err
	}
	return a.f.Sync()
}

func (a *Appender) Close() error {
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		_ = a.f.Close()
		return err
	}
	return a.f.Close()
}
