package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/internal/bytesize"
	"github.com/chunkvault/chunkvault/internal/cli/output"
)

var metricsType string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show host resource usage",
	Long: `Show memory, CPU, and disk usage of the host running the vault.

Useful for sizing chunk parallelism and provider placement before a
large upload or scan.

Examples:
  # All resource types
  chunkvault metrics

  # Memory only
  chunkvault metrics --type memory`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().StringVarP(&metricsType, "type", "t", "all", "Resource type (memory|cpu|disk|all)")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	switch metricsType {
	case "memory", "cpu", "disk", "all":
	default:
		return fmt.Errorf("invalid metrics type: %q (valid: memory, cpu, disk, all)", metricsType)
	}

	var pairs [][2]string

	if metricsType == "memory" || metricsType == "all" {
		v, err := mem.VirtualMemory()
		if err != nil {
			return fmt.Errorf("memory stats: %w", err)
		}
		pairs = append(pairs,
			[2]string{"Memory total", bytesize.ByteSize(v.Total).String()},
			[2]string{"Memory used", fmt.Sprintf("%s (%.1f%%)", bytesize.ByteSize(v.Used).String(), v.UsedPercent)},
			[2]string{"Memory available", bytesize.ByteSize(v.Available).String()},
		)
	}

	if metricsType == "cpu" || metricsType == "all" {
		percentages, err := cpu.Percent(500*time.Millisecond, false)
		if err != nil {
			return fmt.Errorf("cpu stats: %w", err)
		}
		counts, err := cpu.Counts(true)
		if err != nil {
			return fmt.Errorf("cpu stats: %w", err)
		}
		if len(percentages) > 0 {
			pairs = append(pairs, [2]string{"CPU usage", fmt.Sprintf("%.1f%%", percentages[0])})
		}
		pairs = append(pairs, [2]string{"CPU cores", fmt.Sprintf("%d", counts)})
	}

	if metricsType == "disk" || metricsType == "all" {
		path, err := os.Getwd()
		if err != nil {
			path = "/"
		}
		u, err := disk.Usage(path)
		if err != nil {
			return fmt.Errorf("disk stats: %w", err)
		}
		pairs = append(pairs,
			[2]string{"Disk path", u.Path},
			[2]string{"Disk total", bytesize.ByteSize(u.Total).String()},
			[2]string{"Disk used", fmt.Sprintf("%s (%.1f%%)", bytesize.ByteSize(u.Used).String(), u.UsedPercent)},
			[2]string{"Disk free", bytesize.ByteSize(u.Free).String()},
		)
	}

	return output.SimpleTable(os.Stdout, pairs)
}
