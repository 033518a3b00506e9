package types

import (
	"encoding/json"
	"fmt"
)

// Value is the payload carried by a peer response. Peers answer with
// free-form data; the engine only ever needs a textual view of it for
// similarity scoring and aggregation, so the union stays small:
// Text, Structured, or Raw.
type Value interface {
	// Text returns the textual view used for similarity and display.
	Text() string

	valueKind() string
}

// TextValue is a plain string response.
type TextValue string

// Text implements Value.
func (v TextValue) Text() string { return string(v) }

func (TextValue) valueKind() string { return "text" }

// StructuredValue is a map-shaped response. If it carries a string
// "text" field, that field is the textual view; otherwise the map is
// serialized to canonical JSON (encoding/json sorts map keys).
type StructuredValue map[string]any

// Text implements Value.
func (v StructuredValue) Text() string {
	if t, ok := v["text"].(string); ok {
		return t
	}
	data, err := json.Marshal(map[string]any(v))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(v))
	}
	return string(data)
}

func (StructuredValue) valueKind() string { return "structured" }

// RawValue is an uninterpreted byte response.
type RawValue []byte

// Text implements Value.
func (v RawValue) Text() string { return string(v) }

func (RawValue) valueKind() string { return "raw" }
