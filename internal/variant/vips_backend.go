package variant

import (
	"fmt"
	"os"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/rs/zerolog"
)

// libvips 在同一进程内只能启动一次，关闭后无法重新启动
var (
	vipsMu      sync.Mutex
	vipsStarted bool
	vipsStopped bool
)

// VipsBackend 基于 libvips 的实现
type VipsBackend struct {
	once sync.Once
}

var _ Backend = (*VipsBackend)(nil)

// NewVipsBackend 启动 libvips 并桥接日志
func NewVipsBackend(logger zerolog.Logger) (*VipsBackend, error) {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStopped {
		return nil, fmt.Errorf("libvips has already been shut down in this process")
	}
	if !vipsStarted {
		if err := startVips(logger); err != nil {
			return nil, err
		}
		vipsStarted = true
		logger.Info().Str("version", vips.Version).Msg("libvips initialized")
	}
	return &VipsBackend{}, nil
}

func startVips(logger zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup failed: %v", r)
		}
	}()

	vipsLog := logger.With().Str("component", "vips").Logger()
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			vipsLog.Error().Str("domain", domain).Msg(msg)
		case vips.LogLevelWarning:
			vipsLog.Warn().Str("domain", domain).Msg(msg)
		default:
			vipsLog.Debug().Str("domain", domain).Msg(msg)
		}
	}, vipsLogLevel(logger.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})
	return nil
}

func vipsLogLevel(level zerolog.Level) vips.LogLevel {
	switch {
	case level <= zerolog.DebugLevel:
		return vips.LogLevelInfo
	case level == zerolog.InfoLevel, level == zerolog.WarnLevel:
		return vips.LogLevelWarning
	case level == zerolog.ErrorLevel:
		return vips.LogLevelError
	}
	return vips.LogLevelCritical
}

func (b *VipsBackend) Name() string { return BackendVips }

// Encodes libvips 支持全部输出格式
func (b *VipsBackend) Encodes(Format) bool { return true }

// Close 关闭 libvips
func (b *VipsBackend) Close() error {
	b.once.Do(func() {
		vipsMu.Lock()
		defer vipsMu.Unlock()
		if vipsStarted && !vipsStopped {
			vips.Shutdown()
			vipsStopped = true
		}
	})
	return nil
}

// Resize 等比缩放到目标框内，不放大
func (b *VipsBackend) Resize(src, dst string, t Target) error {
	return b.process(src, dst, t, func(ref *vips.ImageRef) error {
		return ref.ThumbnailWithSize(t.Width, t.Height, vips.InterestingNone, vips.SizeDown)
	})
}

// Crop 填满目标框并居中裁掉溢出部分
func (b *VipsBackend) Crop(src, dst string, t Target) error {
	return b.process(src, dst, t, func(ref *vips.ImageRef) error {
		return ref.Thumbnail(t.Width, t.Height, vips.InterestingCentre)
	})
}

// CompositeBlur 缩放后高斯模糊
func (b *VipsBackend) CompositeBlur(src, dst string, t Target) error {
	return b.process(src, dst, t, func(ref *vips.ImageRef) error {
		if err := ref.ThumbnailWithSize(t.Width, t.Height, vips.InterestingNone, vips.SizeDown); err != nil {
			return err
		}
		return ref.GaussianBlur(t.Sigma)
	})
}

func (b *VipsBackend) process(src, dst string, t Target, transform func(*vips.ImageRef) error) error {
	format, err := FormatFromPath(dst)
	if err != nil {
		return err
	}

	ref, err := vips.LoadImageFromFile(src, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	// 与 imaging 后端及尺寸探测一致，先按 EXIF 方向摆正
	if err := ref.AutoRotate(); err != nil {
		return fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	if err := transform(ref); err != nil {
		return fmt.Errorf("vips transform failed: %w", err)
	}

	var data []byte
	switch format {
	case FormatJPEG:
		data, _, err = ref.ExportJpeg(&vips.JpegExportParams{
			Quality:        t.Quality,
			StripMetadata:  true,
			OptimizeCoding: true,
		})
	case FormatPNG:
		data, _, err = ref.ExportPng(&vips.PngExportParams{
			Compression:   pngCompression(t.Quality),
			StripMetadata: true,
		})
	case FormatWebP:
		data, _, err = ref.ExportWebp(&vips.WebpExportParams{
			Quality:       t.Quality,
			StripMetadata: true,
		})
	case FormatGIF:
		data, _, err = ref.ExportGIF(vips.NewGifExportParams())
	}
	if err != nil {
		return fmt.Errorf("vips export failed: %w", err)
	}

	return os.WriteFile(dst, data, 0644)
}
