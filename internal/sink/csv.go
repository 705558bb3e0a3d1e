package sink

import (
	"encoding/csv"
	"io"

	"github.com/hupe1980/tripdb/model"
)

// CSVWriter writes matched records as CSV in canonical column order.
type CSVWriter struct {
	w       *csv.Writer
	max     int
	written int
	row     []string
}

// NewCSVWriter writes the canonical header to w and returns a writer that
// accepts at most maxResults rows. A negative maxResults is unbounded.
func NewCSVWriter(w io.Writer, maxResults int) (*CSVWriter, error) {
	cw := &CSVWriter{
		w:   csv.NewWriter(w),
		max: maxResults,
		row: make([]string, 0, model.NumFields),
	}
	if err := cw.w.Write(model.Header()); err != nil {
		return nil, err
	}
	return cw, nil
}

// Emit writes rec unless the row bound has been reached.
func (cw *CSVWriter) Emit(rec model.Record) (bool, error) {
	if cw.max >= 0 && cw.written >= cw.max {
		return false, nil
	}
	cw.row = rec.AppendRow(cw.row[:0])
	if err := cw.w.Write(cw.row); err != nil {
		return false, err
	}
	cw.written++
	return cw.max < 0 || cw.written < cw.max, nil
}

// Written returns the number of data rows written.
func (cw *CSVWriter) Written() int { return cw.written }

// Flush writes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}
