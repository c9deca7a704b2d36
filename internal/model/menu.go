package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is a menu section
type Category string

const (
	CategoryBurgers  Category = "burgers"
	CategorySides    Category = "sides"
	CategoryDrinks   Category = "drinks"
	CategoryDesserts Category = "desserts"
)

// Categories lists menu sections in display order
var Categories = []Category{CategoryBurgers, CategorySides, CategoryDrinks, CategoryDesserts}

// NutritionalInfo holds optional nutrition facts for a menu item
type NutritionalInfo struct {
	Calories int `json:"calories"`
}

// MenuItem is the authoritative record for one orderable item
type MenuItem struct {
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	Category        Category         `json:"category,omitempty"`
	Description     string           `json:"description,omitempty"`
	Ingredients     []string         `json:"ingredients,omitempty"`
	NutritionalInfo *NutritionalInfo `json:"nutritional_info,omitempty"`
}

// Key returns the case-insensitive match key for the item name
func (m MenuItem) Key() string {
	return NameKey(m.Name)
}

// NameKey normalizes a free-form item name into a menu match key
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MenuFile mirrors the on-disk menu.json layout: one array per category
type MenuFile map[Category][]MenuItem
