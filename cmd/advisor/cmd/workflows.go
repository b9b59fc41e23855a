package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/orgdesign"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Manage stored workflow analyses",
	Long: `List, inspect, approve, reject and delete stored analyses.

Approving a PENDING analysis synthesizes its agent organisation design.`,
}

var workflowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	Args:  cobra.NoArgs,
	RunE:  runWorkflowsList,
}

var workflowsGetCmd = &cobra.Command{
	Use:   "get <workflow-id>",
	Short: "Show a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsGet,
}

var workflowsApproveCmd = &cobra.Command{
	Use:   "approve <workflow-id>",
	Short: "Approve an analysis and generate its org design",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsApprove,
}

var workflowsRejectCmd = &cobra.Command{
	Use:   "reject <workflow-id>",
	Short: "Reject an analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsReject,
}

var workflowsDeleteCmd = &cobra.Command{
	Use:   "delete <workflow-id>",
	Short: "Delete a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsDelete,
}

var (
	listStatus   string
	listLimit    int
	listJSON     bool
	getFormat    string
	approveBy    string
	approveNotes string
	rejectBy     string
	rejectReason string
)

func init() {
	rootCmd.AddCommand(workflowsCmd)
	workflowsCmd.AddCommand(workflowsListCmd, workflowsGetCmd, workflowsApproveCmd,
		workflowsRejectCmd, workflowsDeleteCmd)

	workflowsListCmd.Flags().StringVar(&listStatus, "status", "",
		"filter by approval status (pending, approved, rejected)")
	workflowsListCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of entries (0 = all)")
	workflowsListCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")

	workflowsGetCmd.Flags().StringVarP(&getFormat, "format", "f", formatJSON,
		"output format (json, yaml, markdown, text)")

	workflowsApproveCmd.Flags().StringVar(&approveBy, "by", "", "approver name (required)")
	workflowsApproveCmd.Flags().StringVar(&approveNotes, "notes", "", "approval notes")
	_ = workflowsApproveCmd.MarkFlagRequired("by")

	workflowsRejectCmd.Flags().StringVar(&rejectBy, "by", "", "reviewer name (required)")
	workflowsRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "rejection reason")
	_ = workflowsRejectCmd.MarkFlagRequired("by")
}

// withStore loads the configuration and hands an open store to fn.
func withStore(cmd *cobra.Command, fn func(store core.AnalysisStore, logger *logging.Logger, modelName string) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)
	return fn(store, logger, cfg.Model.Name)
}

func runWorkflowsList(cmd *cobra.Command, _ []string) error {
	filter := core.ListFilter{Limit: listLimit}
	if listStatus != "" {
		status, ok := core.ParseApprovalStatus(strings.ToUpper(listStatus))
		if !ok {
			return fmt.Errorf("invalid status %q (pending, approved, rejected)", listStatus)
		}
		filter.Status = status
	}
	if listLimit < 0 {
		return fmt.Errorf("invalid limit %d", listLimit)
	}

	return withStore(cmd, func(store core.AnalysisStore, _ *logging.Logger, _ string) error {
		summaries, err := store.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No workflows found.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSTEPS\tPOTENTIAL\tCREATED\tPREVIEW")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f%%\t%s\t%s\n",
				s.ID, s.Status, s.TotalSteps, s.AutomationPotential*100,
				s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Preview)
		}
		return w.Flush()
	})
}

func runWorkflowsGet(cmd *cobra.Command, args []string) error {
	if err := validateFormat(getFormat); err != nil {
		return err
	}
	return withStore(cmd, func(store core.AnalysisStore, _ *logging.Logger, _ string) error {
		wf, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if getFormat == formatJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(wf)
		}
		fmt.Fprintf(out, "Approval: %s\n", wf.Status)
		data, err := renderReport(newReport(wf.Analysis, nil), getFormat, isTerminal(out))
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	})
}

func runWorkflowsApprove(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withStore(cmd, func(store core.AnalysisStore, logger *logging.Logger, modelName string) error {
		wf, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if wf.Status != core.ApprovalPending {
			return core.ErrInvalidApprovalState(id, wf.Status)
		}
		design, err := orgdesign.Synthesize(wf.Analysis, orgdesign.WithModel(modelName))
		if err != nil {
			return err
		}
		if err := store.Approve(cmd.Context(), id, approveBy, approveNotes, design); err != nil {
			return err
		}
		logger.Info("workflow approved", "workflow_id", id, "approved_by", approveBy)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Approved %s by %s\n", id, approveBy)
		fmt.Fprintf(out, "Agents: %d, connections: %d, tools: %d\n",
			len(design.Chart.Agents), len(design.Chart.Connections), len(design.ToolRegistry))
		counts := orgdesign.ModeCounts(design.Chart)
		for _, mode := range orgdesign.SortedModes(counts) {
			fmt.Fprintf(out, "  %-15s %d\n", mode, counts[mode])
		}
		return nil
	})
}

func runWorkflowsReject(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withStore(cmd, func(store core.AnalysisStore, logger *logging.Logger, _ string) error {
		if err := store.Reject(cmd.Context(), id, rejectBy, rejectReason); err != nil {
			return err
		}
		logger.Info("workflow rejected", "workflow_id", id, "rejected_by", rejectBy)
		fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s by %s\n", id, rejectBy)
		return nil
	})
}

func runWorkflowsDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withStore(cmd, func(store core.AnalysisStore, _ *logging.Logger, _ string) error {
		if err := store.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	})
}
