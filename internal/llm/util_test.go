package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON passes through",
			input: `{"key": "value"}`,
			want:  `{"key": "value"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"key\": \"value\"}\n```",
			want:  `{"key": "value"}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"key\": \"value\"}\n```",
			want:  `{"key": "value"}`,
		},
		{
			name:  "fence with unexpected language tag",
			input: "```javascript\n{\"key\": \"value\"}\n```",
			want:  `{"key": "value"}`,
		},
		{
			name:  "fence with payload on the opening line",
			input: "```{\"key\": \"value\"}\n```",
			want:  `{"key": "value"}`,
		},
		{
			name:  "conversational preamble",
			input: "Here is the structured output you asked for:\n\n{\"company\": \"Acme\", \"title\": \"Backend Engineer\"}",
			want:  `{"company": "Acme", "title": "Backend Engineer"}`,
		},
		{
			name:  "trailing prose after the payload",
			input: "{\"key\": \"value\"}\n\nLet me know if you need anything else!",
			want:  `{"key": "value"}`,
		},
		{
			name:  "array payload with preamble",
			input: "The rankings are:\n[{\"url\": \"a\", \"rank\": 1}]",
			want:  `[{"url": "a", "rank": 1}]`,
		},
		{
			name:  "array wins when it opens before the object",
			input: `[{"id": 1}, {"id": 2}] trailing`,
			want:  `[{"id": 1}, {"id": 2}]`,
		},
		{
			name:  "braces inside strings do not end extraction",
			input: `{"template": "Hello {name}!"} extra`,
			want:  `{"template": "Hello {name}!"}`,
		},
		{
			name:  "escaped quotes inside strings",
			input: "Result: {\"message\": \"He said \\\"hi\\\"\"}",
			want:  `{"message": "He said \"hi\""}`,
		},
		{
			name:  "unbalanced payload is returned as-is",
			input: `{"key": "value"`,
			want:  `{"key": "value"`,
		},
		{
			name:  "no JSON at all is returned as-is",
			input: "the model refused to answer",
			want:  "the model refused to answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	tests := []struct {
		name  string
		input string
		open  byte
		close byte
		want  string
	}{
		{name: "nested objects", input: `{"a": {"b": {"c": 1}}} tail`, open: '{', close: '}', want: `{"a": {"b": {"c": 1}}}`},
		{name: "nested arrays", input: `[[1, 2], [3]] tail`, open: '[', close: ']', want: `[[1, 2], [3]]`},
		{name: "empty input", input: "", open: '{', close: '}', want: ""},
		{name: "wrong opener", input: "not json", open: '{', close: '}', want: ""},
		{name: "never closes", input: `{"a": [1, 2`, open: '{', close: '}', want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBalanced(tt.input, tt.open, tt.close))
		})
	}
}
