package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextValue_Text(t *testing.T) {
	assert.Equal(t, "hello", TextValue("hello").Text())
	assert.Equal(t, "", TextValue("").Text())
}

func TestStructuredValue_Text(t *testing.T) {
	tests := []struct {
		name  string
		value StructuredValue
		want  string
	}{
		{
			name:  "text field used as-is",
			value: StructuredValue{"text": "the answer", "extra": 42},
			want:  "the answer",
		},
		{
			name:  "non-string text field falls through to JSON",
			value: StructuredValue{"text": 7},
			want:  `{"text":7}`,
		},
		{
			name:  "no text field serializes with sorted keys",
			value: StructuredValue{"b": 2, "a": 1},
			want:  `{"a":1,"b":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Text())
		})
	}
}

func TestRawValue_Text(t *testing.T) {
	assert.Equal(t, "raw bytes", RawValue("raw bytes").Text())
}

func TestCapabilityRefMatches(t *testing.T) {
	cap := Capability{Type: "inference", Name: "chat", Version: "2"}

	assert.True(t, CapabilityRef{Type: "inference"}.Matches(cap))
	assert.True(t, CapabilityRef{Type: "inference", Name: "chat"}.Matches(cap))
	assert.True(t, CapabilityRef{Type: "inference", Name: "chat", Version: "2"}.Matches(cap))
	assert.False(t, CapabilityRef{Type: "embedding"}.Matches(cap))
	assert.False(t, CapabilityRef{Type: "inference", Name: "complete"}.Matches(cap))
	assert.False(t, CapabilityRef{Type: "inference", Version: "1"}.Matches(cap))
}

func TestCapabilityQueryBucketKey(t *testing.T) {
	assert.Equal(t, "", CapabilityQuery{}.BucketKey())

	q := CapabilityQuery{Required: []CapabilityRef{
		{Type: "math"}, {Type: "inference"},
	}}
	// Sorted, so order of descriptors does not matter.
	assert.Equal(t, "inference,math", q.BucketKey())

	q2 := CapabilityQuery{Required: []CapabilityRef{
		{Type: "inference"}, {Type: "math"},
	}}
	assert.Equal(t, q.BucketKey(), q2.BucketKey())
}
