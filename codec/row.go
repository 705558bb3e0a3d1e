package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/tripdb/model"
)

// ErrMalformedRow is returned when a row payload cannot be decoded.
var ErrMalformedRow = errors.New("codec: malformed row payload")

// Row is a compact binary codec for model.Record: a uvarint field count
// followed by each column as uvarint length plus bytes, in header order.
// It only accepts model.Record and *model.Record.
type Row struct{}

func (Row) Name() string { return "row" }

// Marshal implements Codec.
func (c Row) Marshal(v any) ([]byte, error) {
	return c.Append(nil, v)
}

// Append implements Appender.
func (Row) Append(dst []byte, v any) ([]byte, error) {
	var rec *model.Record
	switch t := v.(type) {
	case *model.Record:
		rec = t
	case model.Record:
		rec = &t
	default:
		return nil, fmt.Errorf("codec row: unsupported type %T", v)
	}

	dst = binary.AppendUvarint(dst, uint64(model.NumFields))
	for f := model.Field(0); int(f) < model.NumFields; f++ {
		s := rec.Get(f)
		dst = binary.AppendUvarint(dst, uint64(len(s)))
		dst = append(dst, s...)
	}
	return dst, nil
}

// Unmarshal implements Codec. v must be a *model.Record.
func (Row) Unmarshal(data []byte, v any) error {
	rec, ok := v.(*model.Record)
	if !ok {
		return fmt.Errorf("codec row: unsupported type %T", v)
	}

	n, k := binary.Uvarint(data)
	if k <= 0 || n != uint64(model.NumFields) {
		return ErrMalformedRow
	}
	data = data[k:]

	row := make([]string, model.NumFields)
	for i := range row {
		l, k := binary.Uvarint(data)
		if k <= 0 || l > uint64(len(data)-k) {
			return ErrMalformedRow
		}
		row[i] = string(data[k : k+int(l)])
		data = data[k+int(l):]
	}
	if len(data) != 0 {
		return ErrMalformedRow
	}

	r, err := model.FromRow(row)
	if err != nil {
		return err
	}
	*rec = r
	return nil
}
