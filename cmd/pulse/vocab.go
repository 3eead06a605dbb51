package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

func vocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Explore the concept vocabulary",
	}
	cmd.AddCommand(vocabSearchCmd(), vocabInfoCmd(), vocabCategoriesCmd(), vocabListCmd())
	return cmd
}

func vocabSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search concepts by code, description, or example",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := vocabulary.Default()
			matches := reg.Search(args[0])
			if len(matches) == 0 {
				return fmt.Errorf("no concepts match %q", args[0])
			}
			for _, code := range matches {
				fmt.Printf("%-30s %s\n", code, reg.Description(code))
			}
			return nil
		},
	}
}

func vocabInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <code>",
		Short: "Show a concept's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := vocabulary.Default()
			code := strings.ToUpper(args[0])
			concept, ok := reg.Get(code)
			if !ok {
				suggestions := reg.Suggest(code, 3)
				if len(suggestions) > 0 {
					return fmt.Errorf("unknown concept %s, did you mean one of: %s",
						code, strings.Join(suggestions, ", "))
				}
				return fmt.Errorf("unknown concept %s", code)
			}
			fmt.Printf("code:        %s\n", code)
			fmt.Printf("category:    %s\n", concept.Category)
			fmt.Printf("subcategory: %s\n", concept.Subcategory)
			fmt.Printf("description: %s\n", concept.Description)
			if len(concept.Examples) > 0 {
				fmt.Printf("examples:    %s\n", strings.Join(concept.Examples, ", "))
			}
			return nil
		},
	}
}

func vocabCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories and their concept counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := vocabulary.Default()
			counts := reg.CountByCategory()
			for _, category := range reg.Categories() {
				fmt.Printf("%-8s %4d concepts\n", category, counts[category])
			}
			fmt.Printf("%-8s %4d concepts\n", "total", reg.TotalCount())
			return nil
		},
	}
}

func vocabListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <category>",
		Short: "List all concepts in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := vocabulary.Default()
			codes := reg.ListByCategory(strings.ToUpper(args[0]))
			if len(codes) == 0 {
				return fmt.Errorf("unknown category %q", args[0])
			}
			for _, code := range codes {
				fmt.Println(code)
			}
			return nil
		},
	}
}
