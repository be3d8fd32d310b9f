package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomSuffix 生成 n 字节的十六进制随机串，用于文件名去重
func RandomSuffix(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
