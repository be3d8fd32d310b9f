package cmd

import (
	"github.com/anoixa/media-album/internal/di"
	"github.com/anoixa/media-album/utils"
	"github.com/spf13/cobra"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the albums, media and album_attachments tables",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		log := utils.Logger("migrate")

		container := di.NewContainer(cfg)
		if err := container.InitDatabase(); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		defer func() { _ = container.Close() }()

		log.Info().Str("db_type", cfg.DBType).Msg("Database schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
