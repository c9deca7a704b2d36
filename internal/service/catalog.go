package service

import (
	"fmt"
	"strings"

	"perfbot/internal/model"
)

// MenuCatalog is the read-only, authoritative menu. Safe for concurrent reads.
type MenuCatalog struct {
	items []model.MenuItem
	byKey map[string]model.MenuItem
}

// NewMenuCatalog flattens a menu file in category display order. The section an
// item is listed under becomes its category. When a name repeats, only the
// first listing is kept.
func NewMenuCatalog(menu model.MenuFile) *MenuCatalog {
	c := &MenuCatalog{byKey: make(map[string]model.MenuItem)}
	for _, category := range model.Categories {
		for _, item := range menu[category] {
			if strings.TrimSpace(item.Name) == "" {
				continue
			}
			if _, exists := c.byKey[item.Key()]; exists {
				continue
			}
			item.Category = category
			c.items = append(c.items, item)
			c.byKey[item.Key()] = item
		}
	}
	return c
}

// Items returns a copy of all items in display order
func (c *MenuCatalog) Items() []model.MenuItem {
	if c == nil {
		return nil
	}
	out := make([]model.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of menu entries
func (c *MenuCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Lookup finds an item by case-insensitive exact name
func (c *MenuCatalog) Lookup(name string) (model.MenuItem, bool) {
	if c == nil {
		return model.MenuItem{}, false
	}
	item, ok := c.byKey[model.NameKey(name)]
	return item, ok
}

// FormatMenuItem renders an item as knowledge context
func FormatMenuItem(item model.MenuItem) string {
	parts := []string{
		fmt.Sprintf("**%s**", item.Name),
		fmt.Sprintf("Price: $%s", item.Price.StringFixed(2)),
	}
	if item.Description != "" {
		parts = append(parts, "Description: "+item.Description)
	}
	if len(item.Ingredients) > 0 {
		parts = append(parts, "Ingredients: "+strings.Join(item.Ingredients, ", "))
	}
	if item.NutritionalInfo != nil {
		parts = append(parts, fmt.Sprintf("Calories: %d", item.NutritionalInfo.Calories))
	}
	return strings.Join(parts, "\n")
}
