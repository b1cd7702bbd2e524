package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/suggest"
)

func init() {
	rootCmd.AddCommand(newSuggestCmd())
}

func newSuggestCmd() *cobra.Command {
	var (
		elementSelector string
		elementType     string
		currentContent  string
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest variant content for an element",
		Long: `Ask the AI collaborator for variant suggestions. Requires
OPENAI_API_KEY; without it (or when the service is unreachable) a static
fallback list is printed instead.

Example:
  splitlab suggest --selector "h1.hero" --type headline --content "Ship faster"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if elementSelector == "" {
				return fmt.Errorf("--selector is required")
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync()

			g := suggest.NewGenerator(
				os.Getenv("OPENAI_API_KEY"),
				os.Getenv("OPENAI_MODEL"),
				suggest.DefaultTimeout,
				logger,
			)

			suggestions := g.Suggest(context.Background(), elementSelector, elementType, currentContent)

			for i, s := range suggestions {
				fmt.Printf("%d. %s\n", i+1, s.VariantName)
				if s.Description != "" {
					fmt.Printf("   %s\n", s.Description)
				}
				if len(s.Changes) > 0 {
					fmt.Printf("   changes: %s\n", string(s.Changes))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&elementSelector, "selector", "", "CSS selector of the target element (required)")
	cmd.Flags().StringVar(&elementType, "type", "headline", "element type, e.g. headline, cta, button")
	cmd.Flags().StringVar(&currentContent, "content", "", "current content of the element")

	return cmd
}
