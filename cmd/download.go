package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wiktor-jurek/stewthius/internal/service/acquisition"
)

// downloadCmd downloads new videos from the configured profile
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download new videos from the source profile",
	Long: `List the source profile with yt-dlp, download every video that is not stored yet,
upload it to the object store and record it as unprocessed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts := acquisitionOptions(cmd, rt)
		if err := rt.cfg.ValidateForAcquisition(); err != nil {
			return err
		}

		result, err := runDownload(cmd, rt, opts)
		if result != nil {
			cmd.Println(formatAcquisitionResult(result))
		}
		return err
	},
}

// acquisitionOptions applies the command flags on top of the loaded configuration
func acquisitionOptions(cmd *cobra.Command, rt *runtime) acquisition.Options {
	if profile, _ := cmd.Flags().GetString("profile"); profile != "" {
		rt.cfg.Acquisition.ProfileURL = profile
	}
	if limit, _ := cmd.Flags().GetInt("max-downloads"); limit > 0 {
		rt.cfg.Acquisition.MaxDownloads = limit
	}
	return acquisition.Options{
		ProfileURL:   rt.cfg.Acquisition.ProfileURL,
		MaxDownloads: rt.cfg.Acquisition.MaxDownloads,
	}
}

func runDownload(cmd *cobra.Command, rt *runtime, opts acquisition.Options) (*acquisition.Result, error) {
	ctx := cmd.Context()
	if rt.pool == nil {
		if err := rt.connectDatabase(ctx); err != nil {
			return nil, err
		}
	}
	if rt.store == nil {
		if err := rt.openStore(ctx, true); err != nil {
			return nil, err
		}
	}
	return rt.acquisitionService().Run(ctx, opts)
}

func addAcquisitionFlags(cmd *cobra.Command) {
	cmd.Flags().String("profile", "", "Profile URL to list, overrides PROFILE_URL")
	cmd.Flags().Int("max-downloads", 0, "Maximum number of new videos to download (0 means no limit)")
}

func init() {
	addAcquisitionFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}
