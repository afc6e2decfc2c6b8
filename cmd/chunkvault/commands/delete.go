package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/internal/cli/prompt"
	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/config"
)

var (
	deleteForce  bool
	deleteReason string
)

var deleteCmd = &cobra.Command{
	Use:   "delete <file-id>",
	Short: "Delete a file and all of its chunks",
	Long: `Delete a file from the vault.

Chunk bytes are removed from every provider first, then the chunk
records, then the file record. Providers that no longer hold a chunk
are treated as already done, so a retried delete converges.

Examples:
  # Delete with confirmation prompt
  chunkvault delete 4f2c...

  # Delete without prompting
  chunkvault delete 4f2c... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
	deleteCmd.Flags().StringVar(&deleteReason, "reason", "", "Reason recorded in the operation log")
}

func runDelete(cmd *cobra.Command, args []string) error {
	fileID := args[0]

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete file %s and all of its chunks?", fileID), deleteForce)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("Aborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		if deleteReason != "" {
			logger.Info("file deletion requested",
				logger.KeyFileID, fileID,
				"reason", deleteReason)
		}
		deleted, err := rt.Service.Delete(ctx, fileID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("file %s not found", fileID)
		}
		fmt.Printf("Deleted %s\n", fileID)
		return nil
	})
}
