package service

import (
	"context"
	"strings"

	"perfbot/internal/logger"
	"perfbot/internal/model"
)

const systemPrompt = `You are PerfBot, a friendly and professional customer service assistant for PerfBurger,
a premium burger delivery service. Your role is to help customers with:

- Order status inquiries
- Menu questions and recommendations
- Delivery information
- General customer support

Always be polite, helpful, and focused on providing excellent customer service.
Only mention menu items, prices and policies that appear in the information you are given.
If you don't know something specific about an order or menu item, ask for more details
or suggest they contact customer service directly.

Keep responses concise but informative. Use a warm, friendly tone that reflects
PerfBurger's commitment to quality and customer satisfaction.`

const contextPreamble = "Here's some relevant information that might help answer the user's question:\n\n"

const noContextGuardrail = `No menu, FAQ or policy information matched this question.
Do not invent menu items, prices, ingredients or policies that have not been listed to you.
If the customer asks about something you cannot confirm, say so and point them to the menu or to customer service.`

// Fallback replies used when the model is unavailable
const (
	FallbackOrder    = "I'd be happy to help you with your order! Could you please provide your order ID so I can look up the details for you?"
	FallbackMenu     = "I'd love to help you with our menu! We have a variety of delicious burgers, sides, and beverages. What specific information are you looking for?"
	FallbackDelivery = "For delivery information, I'll need a bit more details. Are you asking about delivery times, tracking an existing order, or our delivery areas?"
	FallbackDefault  = "Thank you for contacting PerfBurger! I'm here to help you with any questions about your orders, our menu, or delivery. How can I assist you today?"
)

var fallbackRules = []struct {
	keywords []string
	reply    string
}{
	{keywords: []string{"order", "status", "track"}, reply: FallbackOrder},
	{keywords: []string{"menu", "burger", "food", "eat"}, reply: FallbackMenu},
	{keywords: []string{"delivery", "deliver", "time"}, reply: FallbackDelivery},
}

// ResponseGenerator produces assistant replies with one model call per message
type ResponseGenerator struct {
	ai           AIClient
	historyLimit int
	maxTokens    int
	temperature  float64
	log          *logger.Logger
}

// GeneratorOptions tunes the reply call
type GeneratorOptions struct {
	HistoryLimit int
	MaxTokens    int
	Temperature  float64
}

// NewResponseGenerator creates a new response generator. ai may be nil, in
// which case every reply is a fallback.
func NewResponseGenerator(ai AIClient, opts GeneratorOptions, log *logger.Logger) *ResponseGenerator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	return &ResponseGenerator{
		ai:           ai,
		historyLimit: opts.HistoryLimit,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
		log:          log.With("component", "ResponseGenerator"),
	}
}

// Generate returns the model reply, or a deterministic fallback on any failure
func (g *ResponseGenerator) Generate(ctx context.Context, userMessage string, entries []model.KnowledgeEntry, history []model.ConversationMessage) string {
	if !aiAvailable(g.ai) {
		g.log.Warn("AI client not configured, returning fallback response")
		return FallbackResponse(userMessage)
	}

	req := ChatCompletionRequest{
		Messages:         g.buildMessages(userMessage, entries, history),
		MaxTokens:        g.maxTokens,
		Temperature:      g.temperature,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	}

	resp, err := g.ai.ChatCompletion(ctx, req)
	if err != nil {
		g.log.Error("LLM generation failed, returning fallback", "error", err)
		return FallbackResponse(userMessage)
	}

	content, err := resp.FirstContent()
	if err != nil {
		g.log.Error("LLM returned no usable content, returning fallback", "error", err)
		return FallbackResponse(userMessage)
	}

	return content
}

func (g *ResponseGenerator) buildMessages(userMessage string, entries []model.KnowledgeEntry, history []model.ConversationMessage) []ChatMessage {
	messages := []ChatMessage{{Role: "system", Content: systemPrompt}}

	if len(entries) > 0 {
		messages = append(messages, ChatMessage{Role: "system", Content: contextPreamble + FormatContext(entries)})
	} else {
		messages = append(messages, ChatMessage{Role: "system", Content: noContextGuardrail})
	}

	if len(history) > g.historyLimit {
		history = history[len(history)-g.historyLimit:]
	}
	for _, msg := range history {
		messages = append(messages, ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	return append(messages, ChatMessage{Role: "user", Content: userMessage})
}

// FallbackResponse classifies the message by keyword. It has no external
// dependencies and always succeeds.
func FallbackResponse(userMessage string) string {
	lower := strings.ToLower(userMessage)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return FallbackDefault
}
