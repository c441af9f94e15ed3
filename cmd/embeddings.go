package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// embeddingsCmd groups the summary embedding commands
var embeddingsCmd = &cobra.Command{
	Use:   "embeddings",
	Short: "Summary embedding operations",
	Long:  `Backfill missing summary embeddings, query similar videos and compute the 2D layout.`,
}

// embeddingsBackfillCmd embeds analyzed videos that have no embedding yet
var embeddingsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute embeddings for analyzed videos that have none",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.cfg.ValidateForAnalysis(); err != nil {
			return err
		}
		if err := rt.connectDatabase(cmd.Context()); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		result, err := rt.embeddingService(true).Backfill(cmd.Context(), limit)
		if result != nil {
			cmd.Println(formatBackfillResult(result))
		}
		return err
	},
}

// embeddingsSimilarCmd lists the videos nearest to one video
var embeddingsSimilarCmd = &cobra.Command{
	Use:   "similar [VIDEO_ID]",
	Short: "List the videos most similar to a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.connectDatabase(cmd.Context()); err != nil {
			return err
		}

		k, _ := cmd.Flags().GetInt("limit")
		items, err := rt.embeddingService(false).SimilarTo(cmd.Context(), args[0], k)
		if err != nil {
			return fmt.Errorf("failed to query similar videos: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, items)
		}
		if len(items) == 0 {
			cmd.Printf("No similar videos found for %s.\n", args[0])
			return nil
		}
		cmd.Println(formatSimilarItems(items))
		return nil
	},
}

// embeddingsProjectCmd lays every embedding out in the unit square
var embeddingsProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project all embeddings to 2D layout coordinates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.connectDatabase(cmd.Context()); err != nil {
			return err
		}

		points, err := rt.embeddingService(false).ProjectAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to project embeddings: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, points)
		}
		if len(points) == 0 {
			cmd.Println("No embeddings stored yet.")
			return nil
		}
		cmd.Println(formatProjection(points))
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	result, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	cmd.Println(string(result))
	return nil
}

func init() {
	embeddingsBackfillCmd.Flags().Int("limit", 0, "Maximum number of embeddings to compute (0 means no limit)")
	embeddingsSimilarCmd.Flags().IntP("limit", "k", 5, "Number of similar videos to return")
	embeddingsSimilarCmd.Flags().Bool("json", false, "Print the result as JSON")
	embeddingsProjectCmd.Flags().Bool("json", false, "Print the result as JSON")

	embeddingsCmd.AddCommand(embeddingsBackfillCmd)
	embeddingsCmd.AddCommand(embeddingsSimilarCmd)
	embeddingsCmd.AddCommand(embeddingsProjectCmd)
	rootCmd.AddCommand(embeddingsCmd)
}
