package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wiktor-jurek/stewthius/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long:  `Manage the stewthius configuration file. Environment variables override file values.`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [DATABASE_URL]",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with database, Gemini, acquisition and storage settings.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var databaseURL string
		if len(args) > 0 {
			databaseURL = args[0]
		}

		if err := config.InitConfig(databaseURL); err != nil {
			return err
		}

		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		cmd.Printf("Created configuration file: %s\n", configPath)
		cmd.Println("Set gemini.api_key (or GEMINI_API_KEY) and acquisition.profile_url before running the pipeline.")
		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the configuration file path and the effective settings after environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		cmd.Printf("Configuration file: %s\n", configPath)
		cmd.Println(formatConfig(cfg))
		return nil
	},
}

// formatConfig renders the effective settings with credentials masked
func formatConfig(cfg *config.Config) string {
	rows := [][]string{
		{"database_url", mask(cfg.DatabaseURL)},
		{"log_mode", cfg.LogMode},
		{"gemini.api_key", mask(cfg.Gemini.APIKey)},
		{"gemini.model", cfg.Gemini.Model},
		{"gemini.embed_model", cfg.Gemini.EmbedModel},
		{"gemini.embedding_dimensions", strconv.Itoa(cfg.Gemini.EmbeddingDimensions)},
		{"analysis.ingredient_match_threshold", strconv.FormatFloat(cfg.Analysis.IngredientMatchThreshold, 'f', -1, 64)},
		{"analysis.max_analysis_retries", strconv.Itoa(cfg.Analysis.MaxAnalysisRetries)},
		{"analysis.videos_dir", cfg.Analysis.VideosDir},
		{"acquisition.profile_url", cfg.Acquisition.ProfileURL},
		{"acquisition.ytdlp_bin", cfg.Acquisition.YtDlpBin},
		{"acquisition.max_downloads", strconv.Itoa(cfg.Acquisition.MaxDownloads)},
		{"acquisition.base_delay", cfg.Acquisition.BaseDelay.String()},
		{"acquisition.cooldown", cfg.Acquisition.Cooldown.String()},
		{"storage.bucket", cfg.Storage.Bucket},
		{"storage.prefix", cfg.Storage.Prefix},
		{"storage.local_dir", cfg.Storage.LocalDir},
	}
	return renderTable([]string{"Setting", "Value"}, rows, nil)
}

func mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "********"
	default:
		return secret[:4] + "********"
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
