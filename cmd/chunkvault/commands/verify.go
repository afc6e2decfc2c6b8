package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/pkg/config"
)

var (
	verifyDeep   bool
	verifyRepair bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file-id>",
	Short: "Verify the integrity of a stored file",
	Long: `Verify a file by reassembling it and comparing the SHA-256 digest
against the recorded checksum. Nothing is written to disk.

With --deep, every chunk is additionally fetched and hashed on its own
before the whole-file check, so the verdict names the exact chunks that
are corrupt or missing.

Verdicts are cached for a short period; a deep request never reuses a
shallow verdict.

Examples:
  # Whole-file verification
  chunkvault verify 4f2c...

  # Per-chunk verification
  chunkvault verify 4f2c... --deep`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyDeep, "deep", false, "Fetch and hash every chunk individually")
	verifyCmd.Flags().BoolVar(&verifyRepair, "repair", false, "Not supported; verification never mutates")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyRepair {
		return fmt.Errorf("--repair is not supported: verification is read-only")
	}

	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		verdict, err := rt.Service.Verify(ctx, args[0], verifyDeep)
		if err != nil {
			return err
		}

		if verdict.Verified {
			fmt.Printf("OK  %s (checked at %s)\n", verdict.FileID, verdict.CheckedAt.Local().Format("15:04:05"))
			return nil
		}

		fmt.Printf("FAILED  %s\n", verdict.FileID)
		for _, chunkID := range verdict.BadChunks {
			fmt.Printf("  bad chunk: %s\n", chunkID)
		}
		return fmt.Errorf("file %s failed verification", verdict.FileID)
	})
}
