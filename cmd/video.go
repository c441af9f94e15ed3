package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/repository/media"
	"github.com/wiktor-jurek/stewthius/internal/service/acquisition"
	"github.com/wiktor-jurek/stewthius/internal/service/common"
)

// videoCmd represents the video command
var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Source video operations",
	Long:  `Inspect the source profile and stored media items without downloading anything.`,
}

// videoListCmd lists the video URLs of the source profile
var videoListCmd = &cobra.Command{
	Use:   "list [PROFILE_URL]",
	Short: "List video URLs of the source profile",
	Long:  `List every video URL of the profile using yt-dlp. Defaults to the configured profile.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		profile := rt.cfg.Acquisition.ProfileURL
		if len(args) > 0 {
			profile = args[0]
		}
		if profile == "" {
			return apperrors.FatalConfig("PROFILE_URL is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		ytdlp := acquisition.NewYtDlp(common.NewCmdRunner(), rt.cfg.Acquisition.YtDlpBin)
		urls, err := ytdlp.ListVideoURLs(ctx, profile)
		if err != nil {
			return fmt.Errorf("failed to list videos: %w", err)
		}

		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(urls) > limit {
			urls = urls[:limit]
		}
		if len(urls) == 0 {
			cmd.Println("No videos found for this profile.")
			return nil
		}

		for _, u := range urls {
			cmd.Println(u)
		}
		cmd.Printf("Found %d video(s).\n", len(urls))
		return nil
	},
}

// videoInfoCmd fetches metadata for a single video URL
var videoInfoCmd = &cobra.Command{
	Use:   "info [URL]",
	Short: "Fetch metadata for a video",
	Long:  `Fetch and display the yt-dlp metadata of a single video URL.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		ytdlp := acquisition.NewYtDlp(common.NewCmdRunner(), rt.cfg.Acquisition.YtDlpBin)
		meta, err := ytdlp.Metadata(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch video info: %w", err)
		}
		return printJSON(cmd, meta)
	},
}

// videoShowCmd shows a stored media item
var videoShowCmd = &cobra.Command{
	Use:   "show [VIDEO_ID]",
	Short: "Show a stored video",
	Long:  `Display the stored media item for a platform video id, including its processing status.`,
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

		item, err := media.NewRepository(rt.pool).GetByExternalID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get video: %w", err)
		}
		return printJSON(cmd, item)
	},
}

func init() {
	videoListCmd.Flags().Int("limit", 0, "Maximum number of URLs to print (0 means all)")

	videoCmd.AddCommand(videoListCmd)
	videoCmd.AddCommand(videoInfoCmd)
	videoCmd.AddCommand(videoShowCmd)
	rootCmd.AddCommand(videoCmd)
}
