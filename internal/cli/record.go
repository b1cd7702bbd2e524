package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/experiments"
)

func init() {
	rootCmd.AddCommand(newRecordCmd())
}

func newRecordCmd() *cobra.Command {
	var (
		variantID string
		eventType string
	)

	cmd := &cobra.Command{
		Use:   "record <test-id>",
		Short: "Record an impression or conversion",
		Long: `Record an event for a variant. Mostly useful for scripting and
backfilling; live traffic should hit the /b beacon endpoint.

Example:
  splitlab record 7f3c... --variant 91ab... --event impression`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *experiments.Service) error {
				ctx := context.Background()

				var err error
				switch eventType {
				case "impression":
					err = svc.RecordImpression(ctx, args[0], variantID)
				case "conversion":
					err = svc.RecordConversion(ctx, args[0], variantID)
				default:
					return fmt.Errorf("invalid event type %q (use impression or conversion)", eventType)
				}
				if err != nil {
					return fmt.Errorf("failed to record %s: %w", eventType, err)
				}

				fmt.Printf("Recorded %s for variant %s\n", eventType, variantID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&variantID, "variant", "", "variant id (required)")
	cmd.Flags().StringVar(&eventType, "event", "impression", "event type: impression or conversion")
	cmd.MarkFlagRequired("variant")

	return cmd
}
