package service

import (
	"fmt"
	"sort"
	"strings"

	"perfbot/internal/logger"
	"perfbot/internal/model"
)

// Menu item score weights
const (
	scoreNameMatch        = 2.0
	scoreDescriptionMatch = 1.5
	scoreIngredientMatch  = 1.0
	scoreCategoryMatch    = 1.0

	// query tokens this short or shorter are ignored for text sources
	minTokenLength = 2
)

// Retriever scores and ranks knowledge entries against a query
type Retriever struct {
	source KnowledgeSource
	log    *logger.Logger
}

// NewRetriever creates a new retriever
func NewRetriever(source KnowledgeSource, log *logger.Logger) *Retriever {
	return &Retriever{
		source: source,
		log:    log.With("component", "Retriever"),
	}
}

// Retrieve returns at most maxResults entries with a positive score, sorted by
// score descending. Ties keep encounter order: menu, then FAQs, then policies.
// An unavailable knowledge source yields an empty result, never an error.
func (r *Retriever) Retrieve(query string, maxResults int) []model.KnowledgeEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || maxResults <= 0 {
		return []model.KnowledgeEntry{}
	}
	if r.source == nil {
		return []model.KnowledgeEntry{}
	}

	kb, err := r.source.Knowledge()
	if err != nil || kb == nil {
		r.log.Warn("Knowledge source unavailable, continuing without context", "error", err)
		return []model.KnowledgeEntry{}
	}

	var results []model.KnowledgeEntry
	results = append(results, r.searchMenu(query, kb.Menu)...)
	results = append(results, r.searchFAQs(query, kb.FAQs)...)
	results = append(results, r.searchPolicies(query, kb.Policies)...)

	// Sort by score descending, stable to keep encounter order on ties
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	if results == nil {
		results = []model.KnowledgeEntry{}
	}
	return results
}

func (r *Retriever) searchMenu(query string, menu *MenuCatalog) []model.KnowledgeEntry {
	var results []model.KnowledgeEntry
	for _, item := range menu.Items() {
		score := menuItemScore(query, item)
		if score <= 0 {
			continue
		}
		results = append(results, model.KnowledgeEntry{
			Type:     model.EntryMenuItem,
			Category: string(item.Category),
			Title:    item.Name,
			Content:  FormatMenuItem(item),
			Score:    score,
		})
	}
	return results
}

func (r *Retriever) searchFAQs(query string, faqs []model.FAQ) []model.KnowledgeEntry {
	var results []model.KnowledgeEntry
	for _, faq := range faqs {
		text := strings.ToLower(faq.Question + " " + faq.Answer)
		score := textScore(query, text)
		if score <= 0 {
			continue
		}
		title := faq.Question
		if title == "" {
			title = "FAQ"
		}
		results = append(results, model.KnowledgeEntry{
			Type:    model.EntryFAQ,
			Title:   title,
			Content: faq.Answer,
			Score:   score,
		})
	}
	return results
}

func (r *Retriever) searchPolicies(query string, policies []model.Policy) []model.KnowledgeEntry {
	var results []model.KnowledgeEntry
	for _, p := range policies {
		score := textScore(query, strings.ToLower(p.Content))
		if score <= 0 {
			continue
		}
		results = append(results, model.KnowledgeEntry{
			Type:    model.EntryPolicy,
			Title:   policyTitle(p.Key),
			Content: p.Content,
			Score:   score,
		})
	}
	return results
}

// menuItemScore matches the whole query as a substring, not per token
func menuItemScore(query string, item model.MenuItem) float64 {
	score := 0.0
	if strings.Contains(strings.ToLower(item.Name), query) {
		score += scoreNameMatch
	}
	if strings.Contains(strings.ToLower(item.Description), query) {
		score += scoreDescriptionMatch
	}
	for _, ingredient := range item.Ingredients {
		if strings.Contains(strings.ToLower(ingredient), query) {
			score += scoreIngredientMatch
		}
	}
	if strings.Contains(string(item.Category), query) {
		score += scoreCategoryMatch
	}
	return score
}

// textScore is the fraction of significant query tokens found in text
func textScore(query, text string) float64 {
	if text == "" {
		return 0
	}
	significant, hits := 0, 0
	for _, token := range strings.Fields(query) {
		if len(token) <= minTokenLength {
			continue
		}
		significant++
		if strings.Contains(text, token) {
			hits++
		}
	}
	if significant == 0 {
		return 0
	}
	return float64(hits) / float64(significant)
}

// policyTitle turns "refund_policy" into "Refund Policy"
func policyTitle(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// FormatContext renders retrieved entries for the model prompt
func FormatContext(entries []model.KnowledgeEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("**%s**\n%s", e.Title, e.Content))
	}
	return strings.Join(parts, "\n\n")
}
