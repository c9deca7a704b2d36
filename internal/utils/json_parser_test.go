package utils

import (
	"testing"
)

type extractionPayload struct {
	Items []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Confidence float64 `json:"confidence"`
}

func TestParseAIJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantItems int
		wantConf  float64
		wantErr   bool
	}{
		{
			name:      "Pure JSON",
			input:     `{"items": [{"name": "Classic Burger", "quantity": 2}], "confidence": 0.9}`,
			wantItems: 1,
			wantConf:  0.9,
		},
		{
			name: "JSON in markdown code block",
			input: "```json\n" +
				`{"items": [], "confidence": 0.2}` + "\n```",
			wantItems: 0,
			wantConf:  0.2,
		},
		{
			name:      "JSON with surrounding text",
			input:     `Here is the order: {"items": [{"name": "Fries", "quantity": 1}], "confidence": 0.7} hope that helps.`,
			wantItems: 1,
			wantConf:  0.7,
		},
		{
			name:      "Think block before JSON",
			input:     "<think>the user wants fries {maybe}</think>\n" + `{"items": [{"name": "Fries", "quantity": 3}], "confidence": 0.8}`,
			wantItems: 1,
			wantConf:  0.8,
		},
		{
			name:      "JSON with trailing comma",
			input:     `{"items": [{"name": "Cola", "quantity": 1},], "confidence": 0.5,}`,
			wantItems: 1,
			wantConf:  0.5,
		},
		{
			name:      "JSON with unquoted keys",
			input:     `{items: [], confidence: 0.4}`,
			wantItems: 0,
			wantConf:  0.4,
		},
		{
			name:      "Single quoted JSON inside text",
			input:     `Result: {'items': [{'name': 'Cola', 'quantity': 2}], 'confidence': 0.6}`,
			wantItems: 1,
			wantConf:  0.6,
		},
		{
			name:    "Empty string",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			input:   "not json at all",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got extractionPayload
			err := ParseAIJSON(tt.input, &got)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAIJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(got.Items), tt.wantItems)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestExtractFromMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "JSON code block with json tag",
			input: "```json\n{\"test\": true}\n```",
			want:  `{"test": true}`,
		},
		{
			name:  "JSON code block without tag",
			input: "```\n{\"test\": true}\n```",
			want:  `{"test": true}`,
		},
		{
			name:  "Code block that is not JSON",
			input: "```\nhello\n```",
			want:  "",
		},
		{
			name:  "No code block",
			input: `{"test": true}`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractFromMarkdown(tt.input); got != tt.want {
				t.Errorf("extractFromMarkdown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractBalancedBraces(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple object", input: `{"a": 1} tail`, want: `{"a": 1}`},
		{name: "nested object", input: `{"a": {"b": 2}} tail`, want: `{"a": {"b": 2}}`},
		{name: "brace inside string", input: `{"a": "}"} tail`, want: `{"a": "}"}`},
		{name: "escaped quote inside string", input: `{"a": "say \"}\""}`, want: `{"a": "say \"}\""}`},
		{name: "unbalanced", input: `{"a": 1`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractBalancedBraces(tt.input, '{', '}'); got != tt.want {
				t.Errorf("extractBalancedBraces() = %q, want %q", got, tt.want)
			}
		})
	}
}
