package main

import (
	"fmt"

	"perfbot/internal/model"
	"perfbot/internal/service"

	"github.com/spf13/cobra"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Print the menu catalog loaded from the knowledge base",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		kb := service.LoadKnowledgeBase(cfg.Knowledge.Path, log)
		out := cmd.OutOrStdout()

		var category model.Category
		for _, item := range kb.Menu.Items() {
			if item.Category != category {
				category = item.Category
				fmt.Fprintf(out, "\n[%s]\n", category)
			}
			fmt.Fprintf(out, "  %-28s $%s\n", item.Name, item.Price.StringFixed(2))
		}
		fmt.Fprintf(out, "\n%d items, %d FAQs, %d policies from %s\n",
			kb.Menu.Len(), len(kb.FAQs), len(kb.Policies), cfg.Knowledge.Path)
		return nil
	},
}
