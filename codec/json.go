package codec

import "encoding/json"

// Default is the codec used for newly created record stores.
var Default Codec = GoJSON{}

// JSON is GoJSON's encoding produced by encoding/json. It exists so stores
// can be written without the go-json fast path, for example to compare
// output while debugging.
type JSON struct{}

func (JSON) Name() string                       { return "json" }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
