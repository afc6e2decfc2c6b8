package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/internal/bytesize"
	"github.com/chunkvault/chunkvault/pkg/config"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Split files into chunks and store them",
	Long: `Upload one or more files to the vault.

Each file is split into adaptively sized chunks, hashed, optionally
compressed, and distributed round-robin across the enabled storage
providers. The returned file id addresses the file for download,
verify, and delete.

Examples:
  # Upload a single file
  chunkvault upload report.pdf

  # Upload several files at once
  chunkvault upload *.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		for _, path := range args {
			record, err := rt.Service.Upload(ctx, path)
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			fmt.Printf("%s  %s  (%s in %d chunks, sha256 %s)\n",
				record.ID,
				record.Name,
				bytesize.ByteSize(record.Size).String(),
				record.ChunkCount,
				record.Checksum)
		}
		return nil
	})
}
