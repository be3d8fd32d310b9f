package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileSystem 媒体服务使用的文件系统抽象，路径均为相对存储根目录的路径
type FileSystem interface {
	Abs(storagePath string) (string, error)
	Rel(fullPath string) (string, error)
	Exists(ctx context.Context, storagePath string) (bool, error)
	Move(ctx context.Context, srcPath, storagePath string) error
	Remove(ctx context.Context, storagePath string) error
	RemoveAll(ctx context.Context, storagePath string) error
	MkdirAll(ctx context.Context, storagePath string) error
	ListDirs(ctx context.Context) ([]string, error)
}

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	absBasePath string
}

var _ FileSystem = (*LocalStorage)(nil)

// NewLocalStorage 创建本地存储提供者
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	return &LocalStorage{
		absBasePath: absPath + string(os.PathSeparator),
	}, nil
}

// Abs 将存储路径解析为绝对路径，并防止目录遍历
func (s *LocalStorage) Abs(storagePath string) (string, error) {
	if !IsValidStoragePath(storagePath) {
		return "", fmt.Errorf("invalid storage path: %s", storagePath)
	}

	fullPath := filepath.Join(s.absBasePath, storagePath)
	if !strings.HasPrefix(fullPath, s.absBasePath) {
		return "", fmt.Errorf("invalid file path, potential directory traversal: %s", storagePath)
	}
	return fullPath, nil
}

// Rel 将存储根目录下的绝对路径转换为存储路径
func (s *LocalStorage) Rel(fullPath string) (string, error) {
	rel, err := filepath.Rel(s.absBasePath, fullPath)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if !IsValidStoragePath(rel) {
		return "", fmt.Errorf("path outside storage: %s", fullPath)
	}
	return rel, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	fullPath, err := s.Abs(storagePath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Move 将存储根目录之外的文件（如上传暂存文件）移动到存储路径
// 跨设备时退化为复制后删除
func (s *LocalStorage) Move(ctx context.Context, srcPath, storagePath string) error {
	dstPath, err := s.Abs(storagePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", storagePath, err)
	}

	err = os.Rename(srcPath, dstPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move '%s' to '%s': %w", srcPath, dstPath, err)
	}

	if err := copyFile(srcPath, dstPath); err != nil {
		return err
	}
	_ = os.Remove(srcPath)
	return nil
}

// Remove 删除单个文件，文件不存在不视为错误
func (s *LocalStorage) Remove(ctx context.Context, storagePath string) error {
	fullPath, err := s.Abs(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete local file '%s': %w", fullPath, err)
	}
	return nil
}

// RemoveAll 递归删除目录，目录不存在不视为错误
func (s *LocalStorage) RemoveAll(ctx context.Context, storagePath string) error {
	fullPath, err := s.Abs(storagePath)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete local directory '%s': %w", fullPath, err)
	}
	return nil
}

// MkdirAll 创建目录
func (s *LocalStorage) MkdirAll(ctx context.Context, storagePath string) error {
	fullPath, err := s.Abs(storagePath)
	if err != nil {
		return err
	}
	return os.MkdirAll(fullPath, 0755)
}

// ListDirs 列出存储根目录下的一级目录
func (s *LocalStorage) ListDirs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.absBasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

// Health 检查存储健康状态
func (s *LocalStorage) Health(ctx context.Context) error {
	_, err := os.ReadDir(s.absBasePath)
	return err
}

// Name 返回存储名称
func (s *LocalStorage) Name() string {
	return "local"
}

// BasePath 返回存储的基础路径
func (s *LocalStorage) BasePath() string {
	return s.absBasePath
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file '%s': %w", srcPath, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file '%s': %w", dstPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return fmt.Errorf("failed to copy file content to '%s': %w", dstPath, err)
	}
	return dst.Close()
}

// IsValidStoragePath 校验存储路径是否合法
func IsValidStoragePath(path string) bool {
	if path == "" {
		return false
	}

	// 不允许绝对路径
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return false
	}

	// 防止目录遍历
	if strings.Contains(path, "..") {
		return false
	}

	// 只允许安全字符
	for _, r := range path {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '-' && r != '_' && r != '.' && r != '/' {
			return false
		}
	}

	return true
}
