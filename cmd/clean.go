package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/media-album/internal/di"
	"github.com/anoixa/media-album/internal/services/cleanup"
	"github.com/anoixa/media-album/utils"
	"github.com/spf13/cobra"
)

// cleanCmd 回收暂存媒体、空相册与孤立目录
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Reap expired staged media, empty albums and orphan upload directories",
	Long: `Reap orphaned data.
This includes:
  - temp:   delete staged media older than --max-age, then their albums if left empty
  - albums: delete empty albums that nothing references
  - dirs:   delete numeric upload directories without an album row
  - all:    all of the above`,
}

var cleanTempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Delete expired staged media",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetDuration("max-age")
		return runClean(cmd, func(o *cleanup.Options) {
			o.Temp = true
			o.TempMaxAge = maxAge
		})
	},
}

var cleanAlbumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "Delete empty unreferenced albums",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		ids, _ := cmd.Flags().GetUintSlice("id")
		if !all && len(ids) == 0 {
			return errors.New("either --all or at least one --id is required")
		}
		return runClean(cmd, func(o *cleanup.Options) {
			o.AllAlbums = all
			o.AlbumIDs = ids
		})
	},
}

var cleanDirsCmd = &cobra.Command{
	Use:   "dirs",
	Short: "Delete upload directories without an album",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean(cmd, func(o *cleanup.Options) {
			o.Dirs = true
		})
	},
}

var cleanAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every cleanup step",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetDuration("max-age")
		return runClean(cmd, func(o *cleanup.Options) {
			o.Temp = true
			o.TempMaxAge = maxAge
			o.AllAlbums = true
			o.Dirs = true
		})
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.PersistentFlags().Bool("dry-run", false, "Only show what would be cleaned, don't actually delete")

	for _, c := range []*cobra.Command{cleanTempCmd, cleanAllCmd} {
		c.Flags().Duration("max-age", 0, "Minimum age of staged media to delete (default: cleanup_temp_max_age)")
	}
	cleanAlbumsCmd.Flags().Bool("all", false, "Scan every album")
	cleanAlbumsCmd.Flags().UintSlice("id", nil, "Album ID to check (repeatable)")

	cleanCmd.AddCommand(cleanTempCmd, cleanAlbumsCmd, cleanDirsCmd, cleanAllCmd)
}

// runClean 初始化容器并执行一次回收
func runClean(cmd *cobra.Command, configure func(*cleanup.Options)) error {
	cfg := loadConfig()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	container := di.NewContainer(cfg)
	if err := container.Init(); err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer func() { _ = container.Close() }()

	opts := cleanup.Options{DryRun: dryRun}
	configure(&opts)
	if opts.Temp && opts.TempMaxAge <= 0 {
		opts.TempMaxAge = cfg.CleanupTempMaxAge
	}

	logger := utils.Logger("clean")
	logger.Info().
		Bool("temp", opts.Temp).
		Dur("max_age", opts.TempMaxAge).
		Bool("all_albums", opts.AllAlbums).
		Uints("album_ids", opts.AlbumIDs).
		Bool("dirs", opts.Dirs).
		Bool("dry_run", dryRun).
		Msg("Running cleanup")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	report, err := container.Reaper().Run(ctx, opts)
	printCleanStats(report, dryRun)
	if err != nil {
		return err
	}
	if report.Failures > 0 {
		return fmt.Errorf("encountered %d errors during cleanup", report.Failures)
	}
	return nil
}

// printCleanStats 打印清理统计
func printCleanStats(report cleanup.Report, dryRun bool) {
	fmt.Println()
	fmt.Println("========================================")
	if dryRun {
		fmt.Println("           [DRY RUN MODE]")
	}
	fmt.Println("         Clean Statistics")
	fmt.Println("========================================")
	fmt.Printf("Staged media deleted:       %d\n", report.DeletedMedia)
	fmt.Printf("Empty albums deleted:       %d\n", report.DeletedAlbums)
	fmt.Printf("Empty albums kept (in use): %d\n", report.KeptAlbums)
	fmt.Printf("Orphan directories deleted: %d\n", report.DeletedDirs)
	fmt.Printf("Failures:                   %d\n", report.Failures)
	fmt.Println("========================================")
}
