package filter

import (
	"strconv"
	"strings"

	"github.com/hupe1980/tripdb/model"
)

// Filter is a node of a predicate tree.
type Filter interface {
	// Match reports whether rec satisfies the predicate.
	Match(rec *model.Record) bool
	String() string
}

// Matches evaluates f against rec. A nil filter matches every record.
func Matches(f Filter, rec *model.Record) bool {
	if f == nil {
		return true
	}
	return f.Match(rec)
}

// Range matches records whose numeric field lies within [Min, Max].
// Either bound may be nil.
type Range struct {
	Field model.Field
	Min   *float64
	Max   *float64
}

// Match implements Filter.
func (r *Range) Match(rec *model.Record) bool {
	v := rec.Float(r.Field)
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r *Range) String() string {
	var sb strings.Builder
	sb.WriteString(r.Field.String())
	sb.WriteString(" in [")
	if r.Min != nil {
		sb.WriteString(strconv.FormatFloat(*r.Min, 'g', -1, 64))
	} else {
		sb.WriteString("-inf")
	}
	sb.WriteString(", ")
	if r.Max != nil {
		sb.WriteString(strconv.FormatFloat(*r.Max, 'g', -1, 64))
	} else {
		sb.WriteString("+inf")
	}
	sb.WriteString("]")
	return sb.String()
}

// Equal matches records whose field equals Value exactly.
type Equal struct {
	Field model.Field
	Value string
}

// Match implements Filter.
func (e *Equal) Match(rec *model.Record) bool {
	return rec.Get(e.Field) == e.Value
}

func (e *Equal) String() string {
	return e.Field.String() + " = " + strconv.Quote(e.Value)
}

// And matches when every child matches.
type And []Filter

// Match implements Filter.
func (a And) Match(rec *model.Record) bool {
	for _, f := range a {
		if !Matches(f, rec) {
			return false
		}
	}
	return true
}

func (a And) String() string { return join("AND", a) }

// Or matches when at least one child matches.
type Or []Filter

// Match implements Filter.
func (o Or) Match(rec *model.Record) bool {
	for _, f := range o {
		if Matches(f, rec) {
			return true
		}
	}
	return false
}

func (o Or) String() string { return join("OR", o) }

func join(op string, fs []Filter) string {
	if len(fs) == 0 {
		return op + "()"
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		if f == nil {
			parts[i] = "true"
			continue
		}
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}
