package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anoixa/media-album/api/core"
	"github.com/anoixa/media-album/internal/di"
	"github.com/anoixa/media-album/internal/services/cleanup"
	"github.com/anoixa/media-album/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	cfg := loadConfig()
	log := utils.Logger("server")

	if err := os.MkdirAll(cfg.TempDir(), os.ModePerm); err != nil {
		log.Fatal().Err(err).Msg("Failed to create temp directory")
	}

	container := di.NewContainer(cfg)
	if err := container.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	// 启动时清理上次进程残留的上传临时文件
	utils.SafeGo(func() {
		cleanOldTempFiles(cfg.TempDir(), 24*time.Hour, log)
	})

	var scanner *cleanup.Scanner
	if cfg.CleanupInterval > 0 {
		scanner = cleanup.NewScanner(container.Reaper(), cfg.CleanupInterval, cleanup.Options{
			Temp:       true,
			TempMaxAge: cfg.CleanupTempMaxAge,
			Dirs:       true,
		})
		scanner.Start()
	}

	server, stopLimiters := core.StartServer(core.DependenciesFromContainer(container))
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopLimiters()
	if scanner != nil {
		scanner.Stop()
	}

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing container")
	}

	log.Info().Msg("Server exited successfully")
}

// cleanOldTempFiles 删除超过 maxAge 的上传临时文件
func cleanOldTempFiles(tempDir string, maxAge time.Duration, log zerolog.Logger) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Failed to read temp directory")
		}
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(tempDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to remove old temp file")
			}
		}
	}
}
