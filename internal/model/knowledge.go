package model

// EntryType identifies the knowledge source an entry came from
type EntryType string

const (
	EntryMenuItem EntryType = "menu_item"
	EntryFAQ      EntryType = "faq"
	EntryPolicy   EntryType = "policy"
)

// KnowledgeEntry is a scored retrieval hit. Built per query, never persisted.
type KnowledgeEntry struct {
	Type     EntryType `json:"type"`
	Category string    `json:"category,omitempty"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Score    float64   `json:"score"`
}

// FAQ is one question/answer pair from faqs.yaml
type FAQ struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// FAQFile mirrors faqs.yaml
type FAQFile struct {
	FAQs []FAQ `yaml:"faqs"`
}

// Policy is one named policy document, kept in file order
type Policy struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}
