package service

import (
	"errors"
	"strings"
	"testing"

	"perfbot/internal/logger"
	"perfbot/internal/model"
)

type brokenSource struct{}

func (brokenSource) Knowledge() (*KnowledgeBase, error) {
	return nil, errors.New("disk on fire")
}

func TestRetrieve(t *testing.T) {
	r := NewRetriever(DefaultKnowledgeBase(), logger.Nop())

	tests := []struct {
		name       string
		query      string
		max        int
		wantFirst  string
		wantType   model.EntryType
		wantLen    int
		wantAtMost int
	}{
		{name: "menu name", query: "Classic Burger", max: 3, wantFirst: "Classic Burger", wantType: model.EntryMenuItem},
		{name: "ingredient", query: "sea salt", max: 3, wantFirst: "Fries", wantType: model.EntryMenuItem},
		{name: "faq tokens", query: "what are your delivery hours", max: 3, wantFirst: "What are your delivery hours?", wantType: model.EntryFAQ},
		{name: "policy", query: "refunds", max: 3, wantFirst: "Refund Policy", wantType: model.EntryPolicy},
		{name: "blank query", query: "   ", max: 3, wantLen: 0},
		{name: "zero max", query: "burger", max: 0, wantLen: 0},
		{name: "nothing matches", query: "xylophone", max: 3, wantLen: 0},
		{name: "truncated", query: "delivery", max: 1, wantAtMost: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Retrieve(tt.query, tt.max)
			if got == nil {
				t.Fatal("Retrieve() returned nil")
			}
			if tt.wantFirst != "" {
				if len(got) == 0 {
					t.Fatalf("Retrieve(%q) returned nothing", tt.query)
				}
				if got[0].Title != tt.wantFirst || got[0].Type != tt.wantType {
					t.Errorf("first = %s (%s), want %s (%s)", got[0].Title, got[0].Type, tt.wantFirst, tt.wantType)
				}
				return
			}
			if tt.wantAtMost > 0 {
				if len(got) > tt.wantAtMost {
					t.Errorf("len = %d, want at most %d", len(got), tt.wantAtMost)
				}
				return
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestRetrieve_SortedDescending(t *testing.T) {
	r := NewRetriever(DefaultKnowledgeBase(), logger.Nop())
	got := r.Retrieve("delivery time", 10)
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted: %v then %v", got[i-1].Score, got[i].Score)
		}
	}
}

func TestRetrieve_TiesKeepSourceOrder(t *testing.T) {
	kb := &KnowledgeBase{
		Menu: NewMenuCatalog(model.MenuFile{
			model.CategoryBurgers: {{Name: "Inferno Burger", Ingredients: []string{"spicy mayo"}}},
		}),
		FAQs:     []model.FAQ{{Question: "Is anything spicy?", Answer: "Look for the chili icon."}},
		Policies: []model.Policy{{Key: "allergens", Content: "Spicy sauces contain mustard."}},
	}
	r := NewRetriever(kb, logger.Nop())

	got := r.Retrieve("spicy", 10)
	if len(got) != 3 {
		t.Fatalf("Retrieve() = %+v, want 3 entries", got)
	}
	wantTypes := []model.EntryType{model.EntryMenuItem, model.EntryFAQ, model.EntryPolicy}
	for i, e := range got {
		if e.Score != got[0].Score {
			t.Fatalf("scores differ: %v vs %v", e.Score, got[0].Score)
		}
		if e.Type != wantTypes[i] {
			t.Errorf("entry %d type = %s, want %s", i, e.Type, wantTypes[i])
		}
	}
}

func TestRetrieve_UnavailableSource(t *testing.T) {
	r := NewRetriever(brokenSource{}, logger.Nop())
	if got := r.Retrieve("burger", 3); len(got) != 0 {
		t.Errorf("Retrieve() = %v, want empty", got)
	}
}

func TestMenuItemScore(t *testing.T) {
	item := model.MenuItem{
		Name:        "Bacon Burger",
		Description: "Smoky bacon on a beef patty",
		Ingredients: []string{"bacon", "beef patty"},
		Category:    model.CategoryBurgers,
	}
	tests := []struct {
		query string
		want  float64
	}{
		{query: "bacon", want: 2 + 1.5 + 1},
		{query: "beef patty", want: 1.5 + 1},
		{query: "burgers", want: 1},
		{query: "bacon cheeseburger", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := menuItemScore(tt.query, item); got != tt.want {
				t.Errorf("menuItemScore(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestTextScore(t *testing.T) {
	text := "we deliver monday through sunday from 11 am to 10 pm"
	if got := textScore("do you deliver on sunday", text); got != 2.0/3.0 {
		t.Errorf("textScore() = %v, want 2/3", got)
	}
	if got := textScore("a an to", text); got != 0 {
		t.Errorf("textScore() with only short tokens = %v, want 0", got)
	}
}

func TestFormatContext(t *testing.T) {
	got := FormatContext([]model.KnowledgeEntry{
		{Title: "Fries", Content: "Crispy"},
		{Title: "Refund Policy", Content: "Full refunds"},
	})
	want := "**Fries**\nCrispy\n\n**Refund Policy**\nFull refunds"
	if got != want {
		t.Errorf("FormatContext() = %q, want %q", got, want)
	}
	if !strings.Contains(FormatMenuItem(DefaultKnowledgeBase().Menu.Items()[0]), "Price: $10.99") {
		t.Error("FormatMenuItem() is missing the price line")
	}
}
