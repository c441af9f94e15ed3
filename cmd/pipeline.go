package cmd

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// pipelineCmd runs download then analyze in one process
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Download new videos and analyze them",
	Long: `Run the download step followed by the analyze step. With --lock-file the run refuses
to start while another pipeline holds the same lock.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if lockPath, _ := cmd.Flags().GetString("lock-file"); lockPath != "" {
			unlock, err := acquireRunLock(lockPath)
			if err != nil {
				return err
			}
			defer unlock()
		}

		acqOpts := acquisitionOptions(cmd, rt)
		anOpts := analysisOptions(cmd)
		if err := rt.cfg.ValidateForAcquisition(); err != nil {
			return err
		}
		if err := rt.cfg.ValidateForAnalysis(); err != nil {
			return err
		}

		rt.logger.Info("starting ingestion pipeline")

		downloaded, err := runDownload(cmd, rt, acqOpts)
		if downloaded != nil {
			cmd.Println(formatAcquisitionResult(downloaded))
		}
		if err != nil {
			return fmt.Errorf("download step failed: %w", err)
		}

		analyzed, err := runAnalyze(cmd, rt, anOpts)
		if analyzed != nil {
			cmd.Println(formatAnalysisResult(analyzed))
		}
		if err != nil {
			return fmt.Errorf("analyze step failed: %w", err)
		}

		rt.logger.Info("pipeline finished",
			zap.Int("downloaded", downloaded.Success),
			zap.Int("analyzed", analyzed.Analyzed))
		return nil
	},
}

// acquireRunLock takes the advisory lock at path without blocking
func acquireRunLock(path string) (func(), error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to acquire lock "+path)
	}
	if !ok {
		return nil, apperrors.New(apperrors.CodeConflict, "another pipeline run holds "+path)
	}
	return func() { _ = lock.Unlock() }, nil
}

func init() {
	pipelineCmd.Flags().String("lock-file", "", "Advisory lock file that keeps a second pipeline from starting")
	addAcquisitionFlags(pipelineCmd)
	addAnalysisFlags(pipelineCmd)
	rootCmd.AddCommand(pipelineCmd)
}
