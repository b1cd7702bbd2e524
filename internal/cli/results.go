package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/experiments"
)

var resultsJSON bool

var resultsCmd = &cobra.Command{
	Use:   "results <test-id>",
	Short: "Evaluate and show results for a test",
	Long: `Run the significance pass for a test and show per-variant results.

If a challenger beats the control at the test's confidence level, the test
is completed and the winner recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "print the raw result as JSON")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	return withService(func(svc *experiments.Service) error {
		ctx := context.Background()

		test, err := svc.GetTest(ctx, args[0])
		if err != nil {
			return fmt.Errorf("test '%s' not found", args[0])
		}

		result, err := svc.EvaluateSignificance(ctx, test.ID)
		if err != nil {
			return fmt.Errorf("failed to evaluate test: %w", err)
		}

		if resultsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("TEST: %s (%s)\n", test.Name, test.ID)
		fmt.Printf("STATUS: %s\n", test.Status)
		fmt.Printf("CONFIDENCE LEVEL: %.0f%%\n", result.ConfidenceLevel*100)
		fmt.Printf("CREATED: %s\n", test.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT              IMPR     CONV     RATE     P-VALUE  LIFT")
		fmt.Println(strings.Repeat("─", 64))

		for _, v := range result.Variants {
			name := v.Name
			if v.IsControl {
				name += " *"
			}
			indicator := ""
			if result.HasWinner && v.VariantID == result.WinningVariantID {
				indicator = "  ← winner"
			}

			if v.IsControl {
				fmt.Printf("%-20s %-8d %-8d %-8.2f%% %-8s %-8s%s\n",
					name, v.Impressions, v.Conversions, v.ConversionRate*100, "-", "-", indicator)
			} else {
				fmt.Printf("%-20s %-8d %-8d %-8.2f%% %-8.4f %+.1f%%%s\n",
					name, v.Impressions, v.Conversions, v.ConversionRate*100, v.PValue, v.RelativeImprovement, indicator)
			}
		}

		fmt.Println()
		switch {
		case result.HasWinner:
			fmt.Printf("Winner: %s\n", result.WinningVariantID)
		case result.NeedsMoreData:
			fmt.Printf("No winner yet. Some variants are below the minimum sample size (%d impressions).\n", test.MinSampleSize)
		default:
			fmt.Println("No statistically significant winner yet.")
		}

		fmt.Println("\n* control variant")
		return nil
	})
}
