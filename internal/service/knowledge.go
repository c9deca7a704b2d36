package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"perfbot/internal/logger"
	"perfbot/internal/model"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Knowledge base file names, relative to the configured directory
const (
	MenuFileName     = "menu.json"
	FAQFileName      = "faqs.yaml"
	PoliciesFileName = "policies.json"
)

// KnowledgeBase holds the menu, FAQs and policies used for retrieval
type KnowledgeBase struct {
	Menu     *MenuCatalog
	FAQs     []model.FAQ
	Policies []model.Policy
}

// KnowledgeSource yields the current knowledge base
type KnowledgeSource interface {
	Knowledge() (*KnowledgeBase, error)
}

// Knowledge implements KnowledgeSource
func (kb *KnowledgeBase) Knowledge() (*KnowledgeBase, error) {
	if kb == nil {
		return nil, errors.New("knowledge base not loaded")
	}
	return kb, nil
}

// LoadKnowledgeBase reads the knowledge files under dir. A missing or broken
// file leaves its section empty. When no menu could be loaded the built-in
// default knowledge is used instead.
func LoadKnowledgeBase(dir string, log *logger.Logger) *KnowledgeBase {
	log = log.With("component", "KnowledgeBase", "path", dir)
	kb := &KnowledgeBase{}

	menu, err := loadMenu(filepath.Join(dir, MenuFileName))
	if err != nil {
		log.Warn("Failed to load menu", "error", err)
	}
	kb.Menu = NewMenuCatalog(menu)

	if kb.FAQs, err = loadFAQs(filepath.Join(dir, FAQFileName)); err != nil {
		log.Warn("Failed to load FAQs", "error", err)
	}
	if kb.Policies, err = loadPolicies(filepath.Join(dir, PoliciesFileName)); err != nil {
		log.Warn("Failed to load policies", "error", err)
	}

	if kb.Menu.Len() == 0 {
		log.Warn("No menu items loaded, using default knowledge")
		return DefaultKnowledgeBase()
	}

	log.Info("Knowledge base loaded",
		"menu_items", kb.Menu.Len(),
		"faqs", len(kb.FAQs),
		"policies", len(kb.Policies),
	)
	return kb
}

func loadMenu(path string) (model.MenuFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var menu model.MenuFile
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return menu, nil
}

func loadFAQs(path string) ([]model.FAQ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file model.FAQFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file.FAQs, nil
}

// loadPolicies decodes the policies object through a yaml.Node so that
// document order survives. JSON is valid YAML, so the node tree is exact.
// Only string-valued policies are kept.
func loadPolicies(path string) ([]model.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected an object at top level", path)
	}

	var policies []model.Policy
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.ScalarNode || val.ShortTag() != "!!str" {
			continue
		}
		policies = append(policies, model.Policy{Key: key.Value, Content: val.Value})
	}
	return policies, nil
}

// DefaultKnowledgeBase is served when the knowledge files are unavailable
func DefaultKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		Menu: NewMenuCatalog(model.MenuFile{
			model.CategoryBurgers: {
				{
					Name:        "Classic Burger",
					Price:       decimal.RequireFromString("10.99"),
					Description: "Our signature burger with premium beef patty, lettuce, tomato, onion, and our special sauce",
					Ingredients: []string{"beef patty", "lettuce", "tomato", "onion", "special sauce", "brioche bun"},
				},
			},
			model.CategorySides: {
				{
					Name:        "Fries",
					Price:       decimal.RequireFromString("3.99"),
					Description: "Crispy golden fries with sea salt",
					Ingredients: []string{"potatoes", "sea salt"},
				},
			},
			model.CategoryDrinks: {
				{
					Name:        "Cola",
					Price:       decimal.RequireFromString("2.49"),
					Description: "Ice-cold classic cola",
				},
			},
		}),
		FAQs: []model.FAQ{
			{Question: "What are your delivery hours?", Answer: "We deliver Monday through Sunday from 11 AM to 10 PM."},
			{Question: "How long does delivery take?", Answer: "Typical delivery time is 25-35 minutes, depending on your location and current order volume."},
		},
		Policies: []model.Policy{
			{Key: "refund_policy", Content: "We offer full refunds for orders that are significantly delayed or incorrect."},
		},
	}
}
