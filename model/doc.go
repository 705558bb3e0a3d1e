// Package model defines the ride-transaction record shared by every layer.
//
// A Record carries the 19 columns of the source dataset as text, in source
// order. The last column, index, is the unique key used for point lookups.
//
//	rec, err := model.FromRow(row)
//	if errors.Is(err, model.ErrShortRow) { ... }
//	key := rec.Key()
//	amount := rec.Float(model.FieldTotalAmount) // 0 when unparsable
//
// Header returns the canonical column names used for every CSV output.
package model
