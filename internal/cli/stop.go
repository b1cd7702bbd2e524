package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/store"
)

var stopCmd = &cobra.Command{
	Use:   "stop <test-id>",
	Short: "Stop a running test without declaring a winner",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	return withService(func(svc *experiments.Service) error {
		ctx := context.Background()

		test, err := svc.GetTest(ctx, args[0])
		if err != nil {
			return fmt.Errorf("test '%s' not found", args[0])
		}
		if test.Status != store.StatusRunning && test.Status != store.StatusDraft {
			return fmt.Errorf("test is not running (current status: %s)", test.Status)
		}

		stopped := store.StatusStopped
		if _, err := svc.UpdateTest(ctx, test.ID, &store.TestUpdate{Status: &stopped}); err != nil {
			return fmt.Errorf("failed to stop test: %w", err)
		}

		fmt.Printf("Stopped test '%s'. It no longer appears in the active list.\n", test.Name)
		return nil
	})
}
