package commands

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/internal/bytesize"
	"github.com/chunkvault/chunkvault/internal/cli/output"
	"github.com/chunkvault/chunkvault/internal/cli/timeutil"
	"github.com/chunkvault/chunkvault/pkg/config"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

var (
	listStatus   string
	listType     string
	listPath     string
	listParent   string
	listChecksum string
	listOutput   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List files in the vault",
	Long: `List file and directory records in the vault.

Filters narrow the listing: by lifecycle status, record type, captured
path, parent directory, or checksum. Filters that map to secondary
indexes (path, parent, checksum, status) are served without a full scan.

Examples:
  # List everything
  chunkvault list

  # Only completed files
  chunkvault list --status completed

  # Children of an indexed directory
  chunkvault list --parent 4f2c...

  # All copies of a payload
  chunkvault list --checksum 8ed3f6ad...

  # Machine-readable output
  chunkvault list --output json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (pending|processing|completed|error|failed)")
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by record type (file|directory)")
	listCmd.Flags().StringVar(&listPath, "path", "", "Filter by captured filesystem path")
	listCmd.Flags().StringVar(&listParent, "parent", "", "Filter by parent directory id")
	listCmd.Flags().StringVar(&listChecksum, "checksum", "", "Filter by SHA-256 checksum")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	return withRuntime(func(ctx context.Context, rt *config.Runtime, cfg *config.Config) error {
		records, err := rt.Service.List(ctx, metadata.FileFilter{
			FullPath: listPath,
			ParentID: listParent,
			Type:     metadata.FileType(listType),
			Checksum: listChecksum,
			Status:   metadata.FileStatus(listStatus),
		})
		if err != nil {
			return err
		}

		if format != output.FormatTable {
			printer := output.NewPrinter(os.Stdout, format, false)
			return printer.Print(records)
		}

		table := output.NewTableData("ID", "NAME", "TYPE", "SIZE", "CHUNKS", "STATUS", "CREATED")
		for _, r := range records {
			table.AddRow(
				r.ID,
				r.Name,
				string(r.Type),
				bytesize.ByteSize(r.Size).String(),
				itoa(r.ChunkCount),
				string(r.Status),
				timeutil.FormatTime(r.CreatedAt.Format(time.RFC3339)),
			)
		}
		return output.PrintTable(os.Stdout, table)
	})
}

func itoa(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}
