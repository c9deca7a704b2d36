package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"perfbot/internal/logger"
	"perfbot/internal/model"
)

// ErrNoItemsDetected means no tier produced a single menu item
var ErrNoItemsDetected = errors.New("no items detected")

// unmatchedPenalty is subtracted from confidence for every candidate that is not on the menu
const unmatchedPenalty = 0.1

const summaryLength = 200

// CandidateItem is an unvalidated item proposed by an extraction tier. Any
// price the source suggested is deliberately not carried.
type CandidateItem struct {
	Name           string
	Quantity       int
	Customizations []string
}

// Candidate is the raw output of one extraction tier
type Candidate struct {
	Items            []CandidateItem
	Confidence       float64
	Reasoning        string
	UnavailableItems []string
	AmbiguousItems   []string
}

// ExtractionTier is one strategy in the fallback chain. ok=false means the
// tier could not run or its output was unusable; a non-nil candidate may
// still carry notes worth reporting.
type ExtractionTier interface {
	Method() model.ExtractionMethod
	Try(ctx context.Context, text string, menu *MenuCatalog) (candidate *Candidate, ok bool)
}

// OrderExtractor runs extraction tiers in order until one yields validated items
type OrderExtractor struct {
	tiers []ExtractionTier
	log   *logger.Logger
}

// NewOrderExtractor creates an extractor over the given tiers, tried in order
func NewOrderExtractor(log *logger.Logger, tiers ...ExtractionTier) *OrderExtractor {
	return &OrderExtractor{
		tiers: tiers,
		log:   log.With("component", "OrderExtractor"),
	}
}

// Extract turns conversation text into a validated, priced analysis. When no
// tier finds a menu item the result has Method none, the Error field set and
// ErrNoItemsDetected is returned alongside it.
func (e *OrderExtractor) Extract(ctx context.Context, text string, menu *MenuCatalog) (*model.OrderAnalysisResult, error) {
	carried := &Candidate{}

	for _, tier := range e.tiers {
		candidate, ok := tier.Try(ctx, text, menu)
		if !ok {
			e.log.Info("Extraction tier produced no usable output, falling through", "method", tier.Method())
			carry(carried, candidate)
			continue
		}

		result := Validate(candidate, menu)
		if len(result.Items) == 0 {
			e.log.Info("Extraction tier found no menu items, falling through",
				"method", tier.Method(),
				"unavailable", len(result.UnavailableItems),
			)
			carry(carried, &Candidate{
				Reasoning:        result.Reasoning,
				UnavailableItems: result.UnavailableItems,
				AmbiguousItems:   result.AmbiguousItems,
			})
			continue
		}

		result.Method = tier.Method()
		result.UnavailableItems = mergeNotes(carried.UnavailableItems, result.UnavailableItems)
		result.AmbiguousItems = mergeNotes(carried.AmbiguousItems, result.AmbiguousItems)
		result.Reasoning = joinReasoning(carried.Reasoning, result.Reasoning)
		result.ConversationSummary = Summarize(text)
		return result, nil
	}

	return &model.OrderAnalysisResult{
		Items:               []model.ExtractedItem{},
		TotalAmount:         model.SumItems(nil),
		Reasoning:           carried.Reasoning,
		UnavailableItems:    mergeNotes(carried.UnavailableItems, nil),
		AmbiguousItems:      carried.AmbiguousItems,
		Method:              model.MethodNone,
		ConversationSummary: Summarize(text),
		Error:               ErrNoItemsDetected.Error(),
	}, ErrNoItemsDetected
}

// Validate reconciles candidates against the menu. Unknown names are dropped
// into UnavailableItems with a confidence penalty, names and prices are
// replaced by the menu record and quantities are clamped to at least 1.
func Validate(candidate *Candidate, menu *MenuCatalog) *model.OrderAnalysisResult {
	if candidate == nil {
		candidate = &Candidate{}
	}

	result := &model.OrderAnalysisResult{
		Items:            []model.ExtractedItem{},
		Confidence:       candidate.Confidence,
		Reasoning:        candidate.Reasoning,
		UnavailableItems: mergeNotes(candidate.UnavailableItems, nil),
		AmbiguousItems:   candidate.AmbiguousItems,
	}

	for _, c := range candidate.Items {
		item, ok := menu.Lookup(c.Name)
		if !ok {
			result.Confidence -= unmatchedPenalty
			if name := strings.TrimSpace(c.Name); name != "" {
				result.UnavailableItems = mergeNotes(result.UnavailableItems, []string{fmt.Sprintf("%s (not on menu)", name)})
			}
			continue
		}

		quantity := c.Quantity
		if quantity < 1 {
			quantity = 1
		}
		customizations := dedupe(c.Customizations)

		result.Items = append(result.Items, model.ExtractedItem{
			Name:           item.Name,
			Quantity:       quantity,
			Customizations: customizations,
			Price:          item.Price,
			Category:       item.Category,
		})
	}

	result.Confidence = clamp01(result.Confidence)
	result.TotalAmount = model.SumItems(result.Items)
	return result
}

// Summarize shortens conversation text for display alongside an order
func Summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryLength {
		return text
	}
	return string(runes[:summaryLength]) + "..."
}

func carry(dst, src *Candidate) {
	if src == nil {
		return
	}
	dst.Reasoning = joinReasoning(dst.Reasoning, src.Reasoning)
	dst.UnavailableItems = mergeNotes(dst.UnavailableItems, src.UnavailableItems)
	dst.AmbiguousItems = mergeNotes(dst.AmbiguousItems, src.AmbiguousItems)
}

func joinReasoning(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}

// mergeNotes concatenates two note lists, dropping blanks and case-insensitive repeats
func mergeNotes(a, b []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			key := strings.ToLower(s)
			if s == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func dedupe(values []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
