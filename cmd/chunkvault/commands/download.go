package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/internal/bytesize"
	"github.com/chunkvault/chunkvault/pkg/config"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <file-id>",
	Short: "Reassemble a file from its chunks",
	Long: `Download a file from the vault by id.

Chunks are fetched from their providers in sequence order, decompressed
where needed, and written to the output file. Only files in the
completed state can be downloaded.

Examples:
  # Download to the original file name in the current directory
  chunkvault download 4f2c...

  # Download to a specific path
  chunkvault download 4f2c... --output /tmp/restored.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output file path (default: original file name)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		fileID := args[0]

		record, err := rt.Service.GetFile(ctx, fileID)
		if err != nil {
			return err
		}

		outPath := downloadOutput
		if outPath == "" {
			outPath = record.Name
		}

		sink, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}

		if err := rt.Service.Download(ctx, fileID, sink); err != nil {
			_ = sink.Close()
			_ = os.Remove(outPath)
			return err
		}
		if err := sink.Close(); err != nil {
			return err
		}

		fmt.Printf("Downloaded %s (%s) to %s\n",
			record.Name, bytesize.ByteSize(record.Size).String(), outPath)
		return nil
	})
}
