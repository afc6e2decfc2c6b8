package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/pkg/config"
	"github.com/chunkvault/chunkvault/pkg/indexer"
)

var (
	seekPlusProcessContent  bool
	seekPlusParallel        bool
	seekPlusCheckDuplicates bool
	seekPlusWorkers         int
)

var seekPlusCmd = &cobra.Command{
	Use:   "seek-plus <path>",
	Short: "Index a directory tree with content hashing",
	Long: `Walk a directory like seek, additionally hashing file contents and
optionally tagging records that share a checksum as duplicates.

Hashing is the expensive part; --parallel spreads it across a worker
pool. Duplicate tagging runs after the walk completes so every copy of
a payload is visible before grouping.

Examples:
  # Hash contents while indexing
  chunkvault seek-plus /data/archive --process-content

  # Hash in parallel and tag duplicates
  chunkvault seek-plus /data/archive --process-content --parallel --check-duplicates`,
	Args: cobra.ExactArgs(1),
	RunE: runSeekPlus,
}

func init() {
	seekPlusCmd.Flags().BoolVar(&seekPlusProcessContent, "process-content", false, "Hash file contents (SHA-256)")
	seekPlusCmd.Flags().BoolVar(&seekPlusParallel, "parallel", false, "Hash files with a worker pool")
	seekPlusCmd.Flags().BoolVar(&seekPlusCheckDuplicates, "check-duplicates", false, "Tag files sharing a checksum as duplicates")
	seekPlusCmd.Flags().IntVar(&seekPlusWorkers, "workers", 0, "Worker pool size (default: number of CPUs)")
}

func runSeekPlus(cmd *cobra.Command, args []string) error {
	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		result, err := rt.Indexer.Scan(ctx, args[0], indexer.Options{
			Recursive:       true,
			ProcessContent:  seekPlusProcessContent,
			Parallel:        seekPlusParallel,
			CheckDuplicates: seekPlusCheckDuplicates,
			Workers:         seekPlusWorkers,
		})
		if err != nil {
			return err
		}
		printScanResult(result)
		return nil
	})
}
