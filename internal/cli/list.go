package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/store"
)

var listActive bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tests",
	Long:  `List A/B tests with their status and traffic totals.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listActive, "active", false, "only show running tests")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withService(func(svc *experiments.Service) error {
		ctx := context.Background()

		var tests []*store.Test
		var err error
		if listActive {
			tests, err = svc.ListActiveTests(ctx)
		} else {
			tests, err = svc.ListTests(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list tests: %w", err)
		}

		if len(tests) == 0 {
			fmt.Println("No tests yet. Create one with 'splitlab create'.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVARIANTS\tIMPRESSIONS\tCONVERSIONS\tCREATED")

		for _, test := range tests {
			totalImpressions := 0
			totalConversions := 0
			for _, v := range test.Variants {
				totalImpressions += v.Impressions
				totalConversions += v.Conversions
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				test.ID, test.Name, test.Status, len(test.Variants),
				totalImpressions, totalConversions,
				test.CreatedAt.Format("2006-01-02"))
		}

		return w.Flush()
	})
}
