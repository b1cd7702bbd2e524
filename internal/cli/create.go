package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		description     string
		elementSelector string
		goalType        string
		goalSelector    string
		minSampleSize   int
		confidence      float64
		variantNames    []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new A/B test",
		Long: `Create a new A/B test. The first variant is the control.

Examples:
  splitlab create hero --selector "h1.hero" --variant "Current" --variant "Punchier"
  splitlab create cta --selector "button.signup" --goal click --variant "Sign Up" --variant "Get Started" --variant "Try Free"
  splitlab create hero --selector "h1.hero"        # prompts for variants`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if elementSelector == "" {
				return fmt.Errorf("--selector is required")
			}

			if len(variantNames) == 0 {
				names, err := promptVariants()
				if err != nil {
					return err
				}
				variantNames = names
			}
			if len(variantNames) < 2 {
				return fmt.Errorf("need at least 2 variants (first is the control)")
			}

			def := &store.TestDefinition{
				Name:            args[0],
				Description:     description,
				ElementSelector: elementSelector,
				GoalType:        store.GoalType(goalType),
				GoalSelector:    goalSelector,
				MinSampleSize:   minSampleSize,
				ConfidenceLevel: confidence,
			}
			for i, name := range variantNames {
				def.Variants = append(def.Variants, store.VariantDefinition{
					Name:      name,
					IsControl: i == 0,
				})
			}

			return withService(func(svc *experiments.Service) error {
				test, err := svc.CreateTest(context.Background(), def)
				if err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}

				fmt.Printf("Created test '%s' (%s) with %d variants:\n", test.Name, test.ID, len(test.Variants))
				for _, v := range test.Variants {
					marker := ""
					if v.IsControl {
						marker = " (control)"
					}
					fmt.Printf("  %s: %s%s\n", v.ID, v.Name, marker)
				}
				fmt.Println("\nThe test starts running when the first impression arrives.")

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "test description")
	cmd.Flags().StringVar(&elementSelector, "selector", "", "CSS selector of the element under test (required)")
	cmd.Flags().StringVar(&goalType, "goal", string(store.GoalClick), "goal type: click, form_submit, page_view, custom")
	cmd.Flags().StringVar(&goalSelector, "goal-selector", "", "CSS selector of the conversion goal element")
	cmd.Flags().IntVar(&minSampleSize, "min-sample", store.DefaultMinSampleSize, "impressions per variant before evaluation is suggested")
	cmd.Flags().Float64Var(&confidence, "confidence", store.DefaultConfidenceLevel, "confidence level for declaring a winner")
	cmd.Flags().StringArrayVar(&variantNames, "variant", nil, "variant name (repeatable; first is the control)")

	return cmd
}

// promptVariants collects variant names interactively until an empty entry.
func promptVariants() ([]string, error) {
	fmt.Println("Enter variant names. The first one is the control. Empty name finishes.")

	var names []string
	for {
		label := fmt.Sprintf("Variant %d", len(names)+1)
		if len(names) == 0 {
			label += " (control)"
		}
		prompt := promptui.Prompt{Label: label}

		name, err := prompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				os.Exit(0)
			}
			return nil, err
		}
		if name == "" {
			break
		}
		names = append(names, name)
	}

	return names, nil
}
