// Package codec selects the byte encoding of records inside the record store.
//
// The store header records the codec name, so a store written with one codec
// is always reopened with the same one. Changing Default only affects stores
// created afterwards.
package codec

import "sort"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Appender is implemented by codecs that can encode into a caller buffer.
type Appender interface {
	Append(dst []byte, v any) ([]byte, error)
}

var builtin = map[string]Codec{
	JSON{}.Name():   JSON{},
	GoJSON{}.Name(): GoJSON{},
	Row{}.Name():    Row{},
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}

// Names lists the built-in codec names in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for n := range builtin {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AppendMarshal encodes v with c and appends the result to dst, avoiding an
// intermediate copy when c implements Appender.
func AppendMarshal(c Codec, dst []byte, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	if a, ok := c.(Appender); ok {
		return a.Append(dst, v)
	}
	b, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}
