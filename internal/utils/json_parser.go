package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	reFencedJSON    = regexp.MustCompile("(?s)```json\\s*(.+?)\\s*```")
	reFenced        = regexp.MustCompile("(?s)```\\s*(.+?)\\s*```")
	reThinkBlock    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
	reUnquotedKey   = regexp.MustCompile(`([{,]\s*)(\w+)(\s*:)`)
	reControlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ParseAIJSON extracts and parses JSON from model output that may contain:
// - Pure JSON
// - JSON wrapped in markdown code blocks (```json ... ```)
// - JSON with surrounding text or a leading <think> block
// - Trailing commas, unquoted keys, single quotes
func ParseAIJSON(input string, target interface{}) error {
	input = strings.TrimSpace(reThinkBlock.ReplaceAllString(input, ""))
	if input == "" {
		return fmt.Errorf("empty input")
	}

	// Try direct parsing first (most common case with response_format=json_object)
	if err := json.Unmarshal([]byte(input), target); err == nil {
		return nil
	}

	candidates := []string{
		extractFromMarkdown(input),
		extractJSONFromText(input),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c), target); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(cleanAndFixJSON(c)), target); err == nil {
			return nil
		}
	}

	if cleaned := cleanAndFixJSON(input); cleaned != "" {
		if err := json.Unmarshal([]byte(cleaned), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", truncateString(input, 100))
}

// extractFromMarkdown extracts JSON from markdown code blocks
func extractFromMarkdown(input string) string {
	if matches := reFencedJSON.FindStringSubmatch(input); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	if matches := reFenced.FindStringSubmatch(input); len(matches) > 1 {
		content := strings.TrimSpace(matches[1])
		if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
			return content
		}
	}

	return ""
}

// extractJSONFromText finds the first JSON object, or failing that array, in surrounding text
func extractJSONFromText(input string) string {
	if start := strings.Index(input, "{"); start >= 0 {
		if extracted := extractBalancedBraces(input[start:], '{', '}'); extracted != "" {
			return extracted
		}
	}

	if start := strings.Index(input, "["); start >= 0 {
		if extracted := extractBalancedBraces(input[start:], '[', ']'); extracted != "" {
			return extracted
		}
	}

	return ""
}

// extractBalancedBraces returns the first balanced open/close span, ignoring
// delimiters inside string literals
func extractBalancedBraces(input string, open, close rune) string {
	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}

		switch {
		case ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			if depth == 0 {
				start = i
			}
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// cleanAndFixJSON attempts to fix common model formatting mistakes
func cleanAndFixJSON(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "\ufeff")
	s = reTrailingComma.ReplaceAllString(s, "$1")
	s = reUnquotedKey.ReplaceAllString(s, `$1"$2"$3`)
	s = fixSingleQuotes(s)
	return reControlChars.ReplaceAllString(s, "")
}

// fixSingleQuotes converts single-quoted delimiters to double quotes while
// leaving apostrophes inside words alone
func fixSingleQuotes(input string) string {
	var result strings.Builder
	inDoubleQuote := false
	escape := false
	var prev rune

	for i, ch := range input {
		switch {
		case escape:
			escape = false
		case ch == '\\':
			escape = true
		case ch == '"':
			inDoubleQuote = !inDoubleQuote
		case ch == '\'' && !inDoubleQuote:
			if i == 0 || strings.ContainsRune(":,[{ ", prev) || nextIsDelimiter(input[i+1:]) {
				ch = '"'
			}
		}
		result.WriteRune(ch)
		prev = ch
	}

	return result.String()
}

func nextIsDelimiter(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\n")
	return rest == "" || strings.ContainsAny(rest[:1], ":,]}")
}

// truncateString truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
