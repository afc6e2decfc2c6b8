package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/internal/bytesize"
	"github.com/chunkvault/chunkvault/internal/cli/output"
	"github.com/chunkvault/chunkvault/pkg/config"
	"github.com/chunkvault/chunkvault/pkg/indexer"
)

var seekRecursive bool

var seekCmd = &cobra.Command{
	Use:   "seek <path>",
	Short: "Index a directory tree into the vault catalog",
	Long: `Walk a directory and record its files and subdirectories in the
vault catalog. Entries keep their identity across repeated scans, so a
rescan updates records in place instead of duplicating them.

Seek records names, sizes, and parent links only; use seek-plus to also
hash file contents and tag duplicates.

Examples:
  # Index a directory and everything below it
  chunkvault seek /data/archive

  # Index only the top level
  chunkvault seek /data/archive --recursive=false`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

func init() {
	seekCmd.Flags().BoolVarP(&seekRecursive, "recursive", "r", true, "Descend into subdirectories")
}

func runSeek(cmd *cobra.Command, args []string) error {
	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		result, err := rt.Indexer.Scan(ctx, args[0], indexer.Options{
			Recursive: seekRecursive,
		})
		if err != nil {
			return err
		}
		printScanResult(result)
		return nil
	})
}

func printScanResult(result *indexer.Result) {
	pairs := [][2]string{
		{"Path", result.Path},
		{"Files", fmt.Sprintf("%d", result.FileCount)},
		{"Directories", fmt.Sprintf("%d", result.DirectoryCount)},
		{"Total size", bytesize.ByteSize(result.TotalSize).String()},
		{"Elapsed", result.Elapsed.Round(time.Millisecond).String()},
	}
	if result.ErrorCount > 0 {
		pairs = append(pairs, [2]string{"Errors", fmt.Sprintf("%d", result.ErrorCount)})
	}
	if result.DuplicateCount > 0 {
		pairs = append(pairs, [2]string{"Duplicates", fmt.Sprintf("%d", result.DuplicateCount)})
	}
	_ = output.SimpleTable(os.Stdout, pairs)
}
