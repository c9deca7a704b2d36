package service

import (
	"context"
	"strings"

	"perfbot/internal/model"
	"perfbot/internal/utils"
)

const keywordConfidence = 0.5

// KeywordExtractionTier matches menu item names against the raw text. It is
// pure and deterministic.
type KeywordExtractionTier struct{}

// Method implements ExtractionTier
func (KeywordExtractionTier) Method() model.ExtractionMethod {
	return model.MethodKeyword
}

// Try implements ExtractionTier. An item matches when every word of its name
// appears in the text. The first standalone quantity anywhere in the text
// applies to every match, as do the detected customizations.
func (KeywordExtractionTier) Try(_ context.Context, text string, menu *MenuCatalog) (*Candidate, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil, false
	}

	quantity, found := utils.FirstQuantity(text)
	if !found {
		quantity = 1
	}
	customizations := utils.DetectCustomizations(text)

	candidate := &Candidate{Confidence: keywordConfidence}
	seen := make(map[string]bool)
	for _, item := range menu.Items() {
		if seen[item.Key()] || !utils.ContainsAllWords(lower, item.Key()) {
			continue
		}
		seen[item.Key()] = true
		candidate.Items = append(candidate.Items, CandidateItem{
			Name:           item.Name,
			Quantity:       quantity,
			Customizations: append([]string(nil), customizations...),
		})
	}
	if len(candidate.Items) > 0 {
		candidate.Reasoning = "Matched menu item names by keyword"
	}
	return candidate, true
}
