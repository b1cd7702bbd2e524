package cli

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/experiments"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
}

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <test-id>",
		Short: "Delete a test and all its recorded events",
		Long: `Delete a test, its variants, and every impression and conversion.
This cannot be undone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *experiments.Service) error {
				ctx := context.Background()

				test, err := svc.GetTest(ctx, args[0])
				if err != nil {
					return fmt.Errorf("test '%s' not found", args[0])
				}

				if !force {
					prompt := promptui.Prompt{
						Label:     fmt.Sprintf("Delete test '%s' and all its data", test.Name),
						IsConfirm: true,
					}
					if _, err := prompt.Run(); err != nil {
						fmt.Println("Aborted.")
						return nil
					}
				}

				if err := svc.DeleteTest(ctx, test.ID); err != nil {
					return fmt.Errorf("failed to delete test: %w", err)
				}

				fmt.Printf("Deleted test '%s'.\n", test.Name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")

	return cmd
}
