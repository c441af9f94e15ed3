package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wiktor-jurek/stewthius/internal/service/analysis"
)

// analyzeCmd runs structured extraction over unprocessed videos
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze unprocessed videos with Gemini",
	Long: `Extract structured stew facts from every unprocessed video, resolve ingredient mentions
against the catalog and store the analysis, transcript and summary embedding in one transaction.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts := analysisOptions(cmd)
		if err := rt.cfg.ValidateForAnalysis(); err != nil {
			return err
		}

		result, err := runAnalyze(cmd, rt, opts)
		if result != nil {
			cmd.Println(formatAnalysisResult(result))
		}
		return err
	},
}

func analysisOptions(cmd *cobra.Command) analysis.Options {
	reprocess, _ := cmd.Flags().GetBool("reprocess-failed")
	backfill, _ := cmd.Flags().GetBool("backfill-transcripts")
	limit, _ := cmd.Flags().GetInt("limit")
	return analysis.Options{
		ReprocessFailed: reprocess,
		IncludeBackfill: backfill,
		Limit:           limit,
	}
}

func runAnalyze(cmd *cobra.Command, rt *runtime, opts analysis.Options) (*analysis.Result, error) {
	ctx := cmd.Context()
	if rt.pool == nil {
		if err := rt.connectDatabase(ctx); err != nil {
			return nil, err
		}
	}
	if rt.store == nil {
		if err := rt.openStore(ctx, false); err != nil {
			return nil, err
		}
	}
	return rt.analysisService().Run(ctx, opts)
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("reprocess-failed", false, "Also retry videos whose previous analysis failed")
	cmd.Flags().Bool("backfill-transcripts", false, "Also reanalyze analyzed videos that have no transcript")
	cmd.Flags().Int("limit", 0, "Maximum number of videos to analyze (0 means no limit)")
}

func init() {
	addAnalysisFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}
