package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxStemLength = 64

// SanitizeFilename 将客户端文件名转换为存储安全的文件名
// 结果形如 {stem}_{random}{ext}，扩展名由探测出的 MIME 决定
func SanitizeFilename(original, mimeType string) (string, error) {
	ext := GetSafeExtension(mimeType)
	if ext == "" {
		ext = GetExtensionFromFilename(original)
	}

	base := original
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	stem := base[:len(base)-len(filepath.Ext(base))]

	var sb strings.Builder
	lastDash := false
	for _, r := range stem {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(unicode.ToLower(r))
			lastDash = false
		case r == '-' || r == '_':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && sb.Len() > 0 {
				sb.WriteRune('-')
				lastDash = true
			}
		}
		if sb.Len() >= maxStemLength {
			break
		}
	}

	clean := strings.Trim(sb.String(), "-_")
	if clean == "" {
		clean = "file"
	}

	suffix, err := RandomSuffix(6)
	if err != nil {
		return "", err
	}
	return clean + "_" + suffix + ext, nil
}
