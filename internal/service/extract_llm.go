package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"perfbot/internal/logger"
	"perfbot/internal/model"
	"perfbot/internal/utils"
)

const extractionPrompt = `You are an order-taking assistant for PerfBurger. Read the customer's messages and
identify which items from the menu below they want to order.

MENU:
%s

Respond ONLY with a JSON object of this exact shape:
{
  "items": [{"name": "<exact menu item name>", "quantity": <integer >= 1>, "customizations": ["<short phrase>"]}],
  "confidence": <number between 0 and 1>,
  "reasoning": "<one or two sentences>",
  "unavailable_items": ["<things the customer asked for that are not on the menu>"],
  "ambiguous_items": ["<mentions that could match more than one menu item>"]
}

Rules:
- Use menu item names exactly as written in the menu.
- Never include prices; they are looked up separately.
- Quantities default to 1 when the customer does not say.
- Customizations are modifications such as "no onions" or "extra cheese".
- If the customer only asks questions and does not order anything, return an empty items array.`

// LLMSettings tunes the extraction call
type LLMSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// LLMExtractionTier asks the model for structured order data
type LLMExtractionTier struct {
	ai       AIClient
	settings LLMSettings
	log      *logger.Logger
}

// NewLLMExtractionTier creates the structured-extraction tier
func NewLLMExtractionTier(ai AIClient, settings LLMSettings, log *logger.Logger) *LLMExtractionTier {
	if settings.Temperature <= 0 {
		settings.Temperature = 0.1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	return &LLMExtractionTier{
		ai:       ai,
		settings: settings,
		log:      log.With("component", "LLMExtractionTier"),
	}
}

// Method implements ExtractionTier
func (t *LLMExtractionTier) Method() model.ExtractionMethod {
	return model.MethodLLM
}

// Try implements ExtractionTier. Every failure mode is reported as ok=false
// so the chain falls through.
func (t *LLMExtractionTier) Try(ctx context.Context, text string, menu *MenuCatalog) (*Candidate, bool) {
	if !aiAvailable(t.ai) {
		return &Candidate{Reasoning: "LLM analysis unavailable: AI client not configured"}, false
	}
	if strings.TrimSpace(text) == "" || menu.Len() == 0 {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, t.settings.Timeout)
	defer cancel()

	resp, err := t.ai.ChatCompletion(ctx, ChatCompletionRequest{
		Model: t.settings.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: fmt.Sprintf(extractionPrompt, formatMenuForExtraction(menu))},
			{Role: "user", Content: text},
		},
		Temperature:    t.settings.Temperature,
		MaxTokens:      t.settings.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		t.log.Warn("LLM extraction failed", "error", err)
		return &Candidate{Reasoning: "LLM analysis failed: " + err.Error()}, false
	}

	content, err := resp.FirstContent()
	if err != nil {
		t.log.Warn("LLM extraction returned no content", "error", err)
		return &Candidate{Reasoning: "LLM analysis failed: " + err.Error()}, false
	}

	// Use robust JSON parser to handle various model output formats
	var parsed llmExtraction
	if err := utils.ParseAIJSON(content, &parsed); err != nil {
		t.log.Warn("Failed to parse LLM extraction", "error", err, "content", truncate(content, 200))
		return &Candidate{Reasoning: "LLM analysis returned unparseable output"}, false
	}

	candidate := &Candidate{
		Confidence:       parsed.Confidence,
		Reasoning:        parsed.Reasoning,
		UnavailableItems: parsed.UnavailableItems,
		AmbiguousItems:   parsed.AmbiguousItems,
	}
	for _, item := range parsed.Items {
		candidate.Items = append(candidate.Items, CandidateItem{
			Name:           item.Name,
			Quantity:       int(item.Quantity),
			Customizations: item.Customizations,
		})
	}

	t.log.Debug("LLM extraction parsed",
		"items", len(candidate.Items),
		"confidence", candidate.Confidence,
		"unavailable", len(candidate.UnavailableItems),
	)
	return candidate, true
}

func formatMenuForExtraction(menu *MenuCatalog) string {
	var b strings.Builder
	for _, item := range menu.Items() {
		fmt.Fprintf(&b, "- %s | $%s | %s", item.Name, item.Price.StringFixed(2), item.Category)
		if item.Description != "" {
			fmt.Fprintf(&b, " | %s", item.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

type llmExtraction struct {
	Items []struct {
		Name           string      `json:"name"`
		Quantity       flexInt     `json:"quantity"`
		Customizations flexStrings `json:"customizations"`
	} `json:"items"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	UnavailableItems []string `json:"unavailable_items"`
	AmbiguousItems   []string `json:"ambiguous_items"`
}

// flexInt accepts 2, 2.0 or "2"
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(math.Round(v))
	return nil
}

// flexStrings accepts a string array, a single string or null
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*f = []string{single}
		}
		return nil
	}
	*f = nil
	return nil
}
