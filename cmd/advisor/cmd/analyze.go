package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Analyze a workflow description",
	Long: `Analyze a free-form workflow description and print the report.

The text is read from the given file, or from stdin when the argument is
omitted or "-".

Examples:
  advisor analyze workflow.txt
  cat workflow.txt | advisor analyze --format markdown
  advisor analyze workflow.txt --save --workflow-id invoices
  advisor analyze workflow.txt --format yaml --output report.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeFormat     string
	analyzeOutput     string
	analyzeSave       bool
	analyzeWorkflowID string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", formatText,
		"report format (json, yaml, markdown, text)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "",
		"write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false,
		"store the analysis for approval")
	analyzeCmd.Flags().StringVar(&analyzeWorkflowID, "workflow-id", "",
		"workflow id (default: derived from the run id)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := validateFormat(analyzeFormat); err != nil {
		return err
	}
	text, err := readWorkflowText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	orch, err := buildOrchestrator(cfg, logger, nil)
	if err != nil {
		return err
	}

	var store core.AnalysisStore
	if analyzeSave {
		store, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store, logger)

		if analyzeWorkflowID != "" {
			if _, err := store.Get(cmd.Context(), analyzeWorkflowID); err == nil {
				return core.ErrWorkflowExists(analyzeWorkflowID)
			} else if !core.IsCategory(err, core.ErrCatNotFound) {
				return err
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := orch.Analyze(ctx, analysis.Request{
		WorkflowID:   analyzeWorkflowID,
		WorkflowText: text,
	})
	if err != nil {
		if res != nil && res.Run != nil {
			return fmt.Errorf("analysis failed (trace %s): %w", res.Run.TraceID(), err)
		}
		return err
	}

	if store != nil {
		record := &core.StoredWorkflow{
			ID:           res.Analysis.WorkflowID,
			WorkflowText: text,
			Analysis:     res.Analysis,
		}
		if err := store.Save(ctx, record); err != nil {
			return fmt.Errorf("saving analysis: %w", err)
		}
		logger.Info("analysis saved", "workflow_id", record.ID, "status", record.Status)
	}

	styled := analyzeOutput == "" && isTerminal(cmd.OutOrStdout())
	data, err := renderReport(newReport(res.Analysis, res.Run.Errors()), analyzeFormat, styled)
	if err != nil {
		return err
	}
	if analyzeOutput != "" {
		if err := renameio.WriteFile(analyzeOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", analyzeOutput)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func readWorkflowText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading workflow file: %w", err)
	}
	return string(data), nil
}
