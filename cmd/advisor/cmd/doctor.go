package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/adapters/model"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check host resources and model configuration",
	Long:  "Print a host diagnostics snapshot and verify the configured model provider.",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadRawConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	snap := diagnostics.NewCollector(
		diagnostics.WithDiskPath(filepath.Dir(cfg.State.Path)),
	).Collect(cmd.Context())

	fmt.Fprintln(out, "Host")
	fmt.Fprintf(out, "  host:       %s (%s/%s, %s)\n", snap.Hostname, snap.OS, snap.Arch, snap.GoVersion)
	fmt.Fprintf(out, "  cpu:        %s, %d cores / %d threads, %.1f%% busy\n",
		orDash(snap.CPUModel), snap.CPUCores, snap.CPUThreads, snap.CPUPercent)
	fmt.Fprintf(out, "  memory:     %.0f / %.0f MB (%.1f%%)\n", snap.MemUsedMB, snap.MemTotalMB, snap.MemPercent)
	fmt.Fprintf(out, "  disk:       %.1f / %.1f GB (%.1f%%)\n", snap.DiskUsedGB, snap.DiskTotalGB, snap.DiskPercent)
	fmt.Fprintf(out, "  load:       %.2f %.2f %.2f\n", snap.LoadAvg1, snap.LoadAvg5, snap.LoadAvg15)
	for _, note := range snap.Notes {
		fmt.Fprintf(out, "  note:       %s\n", note)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration")
	fmt.Fprintf(out, "  config:     %s\n", orDash(loader.ConfigFileUsed()))
	fmt.Fprintf(out, "  state:      %s\n", cfg.State.Path)
	if cfg.Trace.Enabled {
		fmt.Fprintf(out, "  traces:     %s\n", cfg.Trace.Dir)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(out, "  validation: ✗ %v\n", err)
	} else {
		fmt.Fprintln(out, "  validation: ✓ ok")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Model")
	fmt.Fprintf(out, "  provider:   %s (supported: %s)\n", cfg.Model.Provider, strings.Join(model.Providers(), ", "))
	fmt.Fprintf(out, "  name:       %s\n", cfg.Model.Name)
	if _, err := model.New(cfg.Model, nil); err != nil {
		fmt.Fprintf(out, "  status:     ✗ %v\n", err)
	} else {
		fmt.Fprintln(out, "  status:     ✓ ready")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
