package cmd

import (
	"github.com/spf13/cobra"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Create or upgrade the PostgreSQL schema (including the vector extension) from the embedded migrations.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.cfg.DatabaseURL == "" {
			return apperrors.FatalConfig("DATABASE_URL is required")
		}

		version, changed, err := common.MigrateUp(rt.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if !changed {
			cmd.Printf("Schema already up to date (version %d).\n", version)
			return nil
		}
		cmd.Printf("Schema migrated to version %d.\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
