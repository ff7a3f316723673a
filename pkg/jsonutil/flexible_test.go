package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{
			name:  "string floor label",
			input: json.RawMessage(`"basement"`),
			want:  "basement",
		},
		{
			name:  "numeric floor label",
			input: json.RawMessage(`2`),
			want:  "2",
		},
		{
			name:  "float value",
			input: json.RawMessage(`1.5`),
			want:  "1.5",
		},
		{
			name:  "boolean true",
			input: json.RawMessage(`true`),
			want:  "true",
		},
		{
			name:  "null value",
			input: json.RawMessage(`null`),
			want:  "",
		},
		{
			name:  "empty raw message",
			input: json.RawMessage{},
			want:  "",
		},
		{
			name:  "nil raw message",
			input: nil,
			want:  "",
		},
		{
			name:  "scale string with quotes",
			input: json.RawMessage(`"1/4\" = 1'-0\""`),
			want:  `1/4" = 1'-0"`,
		},
		{
			name:  "nested object falls back to raw string",
			input: json.RawMessage(`{"level":"1"}`),
			want:  `{"level":"1"}`,
		},
		{
			name:  "negative integer",
			input: json.RawMessage(`-1`),
			want:  "-1",
		},
		{
			name:  "zero",
			input: json.RawMessage(`0`),
			want:  "0",
		},
		{
			name:  "empty string",
			input: json.RawMessage(`""`),
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleStringValue(tt.input)
			if got != tt.want {
				t.Errorf("FlexibleStringValue(%s) = %q, want %q", string(tt.input), got, tt.want)
			}
		})
	}
}
