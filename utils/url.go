package utils

import (
	"strings"
)

// BuildPublicURL 拼接对外访问地址，storagePath 为存储根目录下的相对路径
func BuildPublicURL(prefix, storagePath string) string {
	if storagePath == "" {
		return ""
	}
	prefix = strings.TrimRight(prefix, "/")
	return prefix + "/" + strings.TrimLeft(storagePath, "/")
}
