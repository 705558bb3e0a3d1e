package filter

import "github.com/hupe1980/tripdb/model"

// Float returns a pointer to v, for optional range bounds.
func Float(v float64) *float64 { return &v }

// Between returns a Range over field with optional bounds.
func Between(field model.Field, min, max *float64) *Range {
	return &Range{Field: field, Min: min, Max: max}
}

// Price filters on total_amount.
func Price(min, max *float64) *Range {
	return Between(model.FieldTotalAmount, min, max)
}

// Key filters on the record key.
func Key(k string) *Equal {
	return &Equal{Field: model.FieldIndex, Value: k}
}

// Destination filters on do_location_id.
func Destination(d string) *Equal {
	return &Equal{Field: model.FieldDOLocationID, Value: d}
}

// AndOf combines filters conjunctively.
func AndOf(fs ...Filter) And { return And(fs) }

// OrOf combines filters disjunctively.
func OrOf(fs ...Filter) Or { return Or(fs) }

// KeyEquality returns the key if f is an equality on the key field.
func KeyEquality(f Filter) (string, bool) {
	e, ok := f.(*Equal)
	if !ok || e.Field != model.FieldIndex {
		return "", false
	}
	return e.Value, true
}
