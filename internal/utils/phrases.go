package utils

import (
	"strconv"
	"strings"
	"unicode"
)

// customizationAliases maps a canonical customization to the phrases that request it.
// Order matters: detected customizations are reported in this order.
var customizationAliases = []struct {
	canonical string
	phrases   []string
}{
	{canonical: "no onions", phrases: []string{"no onions", "without onions"}},
	{canonical: "extra cheese", phrases: []string{"extra cheese"}},
	{canonical: "no tomato", phrases: []string{"no tomato", "without tomato"}},
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// MaxKeywordQuantity caps quantities picked up from free text
const MaxKeywordQuantity = 10

// DetectCustomizations returns the canonical customizations mentioned anywhere in text
func DetectCustomizations(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, alias := range customizationAliases {
		for _, phrase := range alias.phrases {
			if strings.Contains(lower, phrase) {
				found = append(found, alias.canonical)
				break
			}
		}
	}
	return found
}

// FirstQuantity returns the first standalone quantity token in text that lies
// in 1..MaxKeywordQuantity. Digits and the words one through ten both count.
func FirstQuantity(text string) (int, bool) {
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if n, ok := parseQuantityToken(token); ok {
			return n, true
		}
	}
	return 0, false
}

func parseQuantityToken(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	if n, ok := numberWords[token]; ok {
		return n, true
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 1 || n > MaxKeywordQuantity {
		return 0, false
	}
	return n, true
}

// ContainsAllWords reports whether every whitespace separated word of phrase
// occurs as a substring of text. Both arguments are expected lower-cased.
func ContainsAllWords(text, phrase string) bool {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}
