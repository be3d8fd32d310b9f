// Package variant 负责派生图片（缩放、裁剪、模糊）的生成与落盘缓存
package variant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/anoixa/media-album/internal/apperr"
	"github.com/mitchellh/mapstructure"
)

// 支持的变体操作
const (
	OpResize        = "resize"
	OpCrop          = "crop"
	OpCompositeBlur = "compositeBlur"
)

// DefaultQuality 未指定质量时使用的默认值
const DefaultQuality = 80

// DefaultBlurSigma compositeBlur 的默认模糊半径
const DefaultBlurSigma = 5.0

// Spec 变体描述：操作、目标尺寸、质量与附加参数
// Width/Height 为 0 表示按源图比例自动计算
type Spec struct {
	Operation string
	Width     int
	Height    int
	Quality   int
	Options   map[string]string
}

// Params 由 Options 解码得到的处理参数
type Params struct {
	Sigma float64 `mapstructure:"sigma"`
}

// Parse 解析 "op,width,height,quality[,key=value...]" 形式的变体描述
func Parse(raw string) (Spec, error) {
	const op = "variant.parse"

	parts := strings.Split(strings.TrimSpace(raw), ",")
	spec := Spec{Operation: strings.TrimSpace(parts[0]), Quality: DefaultQuality}
	if spec.Operation == "" {
		return Spec{}, apperr.Validation(op, "empty variant specification")
	}

	var err error
	if len(parts) > 1 {
		if spec.Width, err = parseDimension(parts[1]); err != nil {
			return Spec{}, apperr.Validation(op, "invalid width %q in %q", parts[1], raw)
		}
	}
	if len(parts) > 2 {
		if spec.Height, err = parseDimension(parts[2]); err != nil {
			return Spec{}, apperr.Validation(op, "invalid height %q in %q", parts[2], raw)
		}
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		if spec.Quality, err = strconv.Atoi(strings.TrimSpace(parts[3])); err != nil {
			return Spec{}, apperr.Validation(op, "invalid quality %q in %q", parts[3], raw)
		}
	}
	for _, kv := range parts[min(len(parts), 4):] {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return Spec{}, apperr.Validation(op, "invalid option %q in %q", kv, raw)
		}
		if spec.Options == nil {
			spec.Options = make(map[string]string)
		}
		spec.Options[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// MustParse 解析失败时 panic，仅用于常量描述
func MustParse(raw string) Spec {
	spec, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseDimension(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative dimension %d", n)
	}
	return n, nil
}

// Validate 校验描述，未知操作视为配置错误
func (s Spec) Validate() error {
	const op = "variant.validate"

	switch s.Operation {
	case OpResize, OpCrop, OpCompositeBlur:
	case "":
		return apperr.Validation(op, "missing operation")
	default:
		return apperr.Configuration(op, "unknown variant operation %q", s.Operation)
	}
	if s.Width < 0 || s.Height < 0 {
		return apperr.Validation(op, "dimensions must not be negative")
	}
	if s.Quality < 1 || s.Quality > 100 {
		return apperr.Validation(op, "quality %d out of range 1-100", s.Quality)
	}
	if _, err := s.Params(); err != nil {
		return err
	}
	return nil
}

// Params 解码附加参数，未知键视为校验错误
func (s Spec) Params() (Params, error) {
	params := Params{Sigma: DefaultBlurSigma}
	if len(s.Options) == 0 {
		return params, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &params,
	})
	if err != nil {
		return Params{}, err
	}
	if err := decoder.Decode(s.Options); err != nil {
		return Params{}, apperr.Validation("variant.params", "invalid options: %v", err)
	}
	if params.Sigma <= 0 || params.Sigma > 100 {
		return Params{}, apperr.Validation("variant.params", "sigma %.2f out of range", params.Sigma)
	}
	return params, nil
}

// String 返回规范化的文本形式
func (s Spec) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s,%d,%d,%d", s.Operation, s.Width, s.Height, s.Quality)
	for _, key := range s.optionKeys() {
		fmt.Fprintf(&sb, ",%s=%s", key, s.Options[key])
	}
	return sb.String()
}

// DirName 变体目录名 {op}_{w|auto}_{h|auto}_{q}[_{hash8}]
func (s Spec) DirName() string {
	name := fmt.Sprintf("%s_%s_%s_%d", s.Operation, dimLabel(s.Width), dimLabel(s.Height), s.Quality)
	if len(s.Options) == 0 {
		return name
	}

	h := sha256.New()
	for _, key := range s.optionKeys() {
		fmt.Fprintf(h, "%s=%s;", key, s.Options[key])
	}
	return name + "_" + hex.EncodeToString(h.Sum(nil))[:8]
}

func (s Spec) optionKeys() []string {
	keys := make([]string, 0, len(s.Options))
	for key := range s.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func dimLabel(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

// ResolveDimensions 根据源图尺寸补全缺失的目标尺寸
// 只给出一边时按源图比例四舍五入，两边都缺失时使用源图尺寸
func ResolveDimensions(width, height, srcWidth, srcHeight int) (int, int) {
	switch {
	case width <= 0 && height <= 0:
		return srcWidth, srcHeight
	case height <= 0:
		return width, max(1, int(math.Round(float64(width)*float64(srcHeight)/float64(srcWidth))))
	case width <= 0:
		return max(1, int(math.Round(float64(height)*float64(srcWidth)/float64(srcHeight)))), height
	}
	return width, height
}
