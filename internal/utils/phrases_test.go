package utils

import (
	"reflect"
	"testing"
)

func TestDetectCustomizations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "none", text: "Just a burger please", want: []string{}},
		{name: "no onions", text: "two classic burgers with NO onions", want: []string{"no onions"}},
		{name: "without variant", text: "without tomato and without onions", want: []string{"no onions", "no tomato"}},
		{name: "extra cheese", text: "extra cheese on everything", want: []string{"extra cheese"}},
		{name: "duplicate phrases reported once", text: "no onions, seriously no onions", want: []string{"no onions"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCustomizations(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectCustomizations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFirstQuantity(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   int
		wantOK bool
	}{
		{name: "digit", text: "I want 3 burgers", want: 3, wantOK: true},
		{name: "number word", text: "I want two classic burgers", want: 2, wantOK: true},
		{name: "punctuation trimmed", text: "burgers x 4, please", want: 4, wantOK: true},
		{name: "first token wins", text: "2 burgers and 5 fries", want: 2, wantOK: true},
		{name: "too large skipped", text: "12 people, so 6 burgers", want: 6, wantOK: true},
		{name: "zero skipped", text: "0 onions", wantOK: false},
		{name: "attached digits ignored", text: "table 4b", wantOK: false},
		{name: "nothing", text: "a burger", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstQuantity(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FirstQuantity() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestContainsAllWords(t *testing.T) {
	tests := []struct {
		text   string
		phrase string
		want   bool
	}{
		{text: "two classic burgers", phrase: "classic burger", want: true},
		{text: "a classic shake", phrase: "classic burger", want: false},
		{text: "anything", phrase: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			if got := ContainsAllWords(tt.text, tt.phrase); got != tt.want {
				t.Errorf("ContainsAllWords(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.want)
			}
		})
	}
}
