package utils

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/anoixa/media-album/config"
	"github.com/rs/zerolog"
)

var (
	baseLogger zerolog.Logger
	logOnce    sync.Once
)

// InitLogger 按配置的级别初始化全局日志器，需在启动阶段调用
func InitLogger(level string) {
	logOnce.Do(func() {})
	baseLogger = newLogger(level)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if config.IsDevelopment() && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// Log 返回全局日志器
func Log() *zerolog.Logger {
	logOnce.Do(func() {
		baseLogger = newLogger("info")
	})
	return &baseLogger
}

// Logger 返回带组件名的日志器
func Logger(component string) zerolog.Logger {
	return Log().With().Str("component", component).Logger()
}

// LogIfDev 仅在开发环境输出
func LogIfDev(msg string) {
	if config.IsDevelopment() {
		Log().Debug().Msg(SanitizeLogMessage(msg))
	}
}

// LogIfDevf 仅在开发环境输出（格式化）
func LogIfDevf(format string, args ...interface{}) {
	if config.IsDevelopment() {
		Log().Debug().Msg(SanitizeLogMessage(fmt.Sprintf(format, args...)))
	}
}

// GormWriter 将 gorm 日志桥接到 zerolog
type GormWriter struct {
	logger zerolog.Logger
}

// NewGormWriter 创建 gorm 日志写入器
func NewGormWriter() *GormWriter {
	return &GormWriter{logger: Logger("gorm")}
}

// Printf 实现 gorm logger.Writer
func (w *GormWriter) Printf(format string, args ...interface{}) {
	w.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
