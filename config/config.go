package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 存储目录
	DataDir         string `mapstructure:"data_dir"`
	UploadDir       string `mapstructure:"upload_dir"`
	PublicURLPrefix string `mapstructure:"public_url_prefix"`

	// 上传校验
	UploadMaxSizeMB      int    `mapstructure:"upload_max_size_mb"`
	UploadMinWidth       int    `mapstructure:"upload_min_width"`
	UploadMinHeight      int    `mapstructure:"upload_min_height"`
	UploadAllowedMimes   string `mapstructure:"upload_allowed_mimes"`
	UploadDefaultContext string `mapstructure:"upload_default_context"`

	// 变体配置
	VariantBackend string        `mapstructure:"variant_backend"`
	VariantTimeout time.Duration `mapstructure:"variant_timeout"`
	VariantPreview string        `mapstructure:"variant_preview"`

	// 缓存提供者配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`
	CacheDimensionTTL  time.Duration `mapstructure:"cache_dimension_ttl"`

	// 清理配置
	CleanupTempMaxAge      time.Duration `mapstructure:"cleanup_temp_max_age"`
	CleanupMinTempAge      time.Duration `mapstructure:"cleanup_min_temp_age"`
	CleanupInterval        time.Duration `mapstructure:"cleanup_interval"`
	CleanupExtraReferences string        `mapstructure:"cleanup_extra_references"`

	// 相册所有者类型（逗号分隔）
	MediaOwnerTypes string `mapstructure:"media_owner_types"`

	// 限流配置
	RateLimitUploadRPS   float64 `mapstructure:"rate_limit_upload_rps"`
	RateLimitUploadBurst int     `mapstructure:"rate_limit_upload_burst"`

	// 日志
	LogLevel string `mapstructure:"log_level"`

	// Worker 配置
	WorkerCount int `mapstructure:"worker_count"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	configFile := viper.GetString("config_file_path")
	if configFile == "" {
		configFile = ".env"
	}
	viper.SetConfigFile(configFile)
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from", configFile)
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	// WorkerCount: -1 = 使用 CPU 线程数, 0 = 使用默认值 (max(2, CPU核心数)), >0 = 使用指定值
	switch {
	case globalConfig.WorkerCount < 0:
		globalConfig.WorkerCount = runtime.GOMAXPROCS(0)
	case globalConfig.WorkerCount == 0:
		globalConfig.WorkerCount = getCpus()
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "60s")
	viper.SetDefault("server_idle_timeout", "120s")

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "media-album")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// 存储目录默认值
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("upload_dir", "./data/uploads")
	viper.SetDefault("public_url_prefix", "/uploads")

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 20)
	viper.SetDefault("upload_min_width", 0)
	viper.SetDefault("upload_min_height", 0)
	viper.SetDefault("upload_allowed_mimes", "image/jpeg,image/png,image/gif,image/webp")
	viper.SetDefault("upload_default_context", "default")

	// 变体配置默认值
	viper.SetDefault("variant_backend", "auto")
	viper.SetDefault("variant_timeout", "30s")
	viper.SetDefault("variant_preview", "crop,200,200,70")

	// 缓存提供者配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("cache_dimension_ttl", "24h")

	// 清理配置默认值
	viper.SetDefault("cleanup_temp_max_age", "24h")
	viper.SetDefault("cleanup_min_temp_age", "5m")
	viper.SetDefault("cleanup_interval", "0")
	viper.SetDefault("cleanup_extra_references", "")

	viper.SetDefault("media_owner_types", "")

	// 限流配置默认值
	viper.SetDefault("rate_limit_upload_rps", 5.0)
	viper.SetDefault("rate_limit_upload_burst", 20)

	viper.SetDefault("log_level", "info")

	// Worker 配置默认值
	viper.SetDefault("worker_count", 0) // 0 表示使用默认值
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return c.ServerDomain
	}
	host := c.ServerHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}

// TempDir 上传暂存目录
func (c *Config) TempDir() string {
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	return filepath.Join(dataDir, "temp")
}

// MaxUploadBytes 单文件上传上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	if c.UploadMaxSizeMB <= 0 {
		return 20 << 20
	}
	return int64(c.UploadMaxSizeMB) << 20
}

// AllowedMimes 允许的 MIME 列表
func (c *Config) AllowedMimes() []string {
	return splitList(c.UploadAllowedMimes)
}

// OwnerTypes 注册的相册所有者类型
func (c *Config) OwnerTypes() []string {
	return splitList(c.MediaOwnerTypes)
}

// ExtraReferences 额外声明的相册引用，格式 table.column
func (c *Config) ExtraReferences() []string {
	return splitList(c.CleanupExtraReferences)
}

// GetWorkerCount 返回 worker 数量
func (c *Config) GetWorkerCount() int {
	if c.WorkerCount <= 0 {
		return getCpus()
	}
	return c.WorkerCount
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
