package variant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/anoixa/media-album/cache"
	"github.com/anoixa/media-album/cache/types"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/metrics"
	"github.com/anoixa/media-album/utils/imagemeta"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options 引擎依赖
type Options struct {
	Backend      Backend
	Cache        types.Provider
	DimensionTTL time.Duration
	Timeout      time.Duration
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Engine 变体缓存引擎
// 变体文件位于源文件同级的 {spec.DirName()} 目录，文件名与源文件相同
type Engine struct {
	backend Backend
	dims    types.Provider
	keys    *cache.KeyBuilder
	dimTTL  time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
	group   singleflight.Group
}

// NewEngine 创建变体引擎
func NewEngine(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, apperr.Configuration("variant.engine", "no image backend configured")
	}
	return &Engine{
		backend: opts.Backend,
		dims:    opts.Cache,
		keys:    cache.NewKeyBuilder("variant:dims"),
		dimTTL:  opts.DimensionTTL,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}, nil
}

// Backend 返回当前处理后端
func (e *Engine) Backend() Backend {
	return e.backend
}

// VariantPath 计算变体文件路径
func VariantPath(sourcePath string, spec Spec) string {
	return filepath.Join(filepath.Dir(sourcePath), spec.DirName(), filepath.Base(sourcePath))
}

// GetOrCreateVariant 返回变体路径，不存在或 force 时生成
// 命中时不读取源文件
func (e *Engine) GetOrCreateVariant(ctx context.Context, sourcePath string, spec Spec, force bool) (string, error) {
	if err := spec.Validate(); err != nil {
		e.metrics.VariantRequest(metrics.ResultError)
		return "", err
	}

	variantPath := VariantPath(sourcePath, spec)
	if !force {
		if info, err := os.Stat(variantPath); err == nil && info.Mode().IsRegular() {
			e.metrics.VariantRequest(metrics.ResultHit)
			return variantPath, nil
		}
	}
	e.metrics.VariantRequest(metrics.ResultMiss)

	_, err, _ := e.group.Do(variantPath, func() (interface{}, error) {
		return nil, e.generate(ctx, sourcePath, variantPath, spec)
	})
	if err != nil {
		e.metrics.VariantRequest(metrics.ResultError)
		return "", err
	}
	return variantPath, nil
}

// Warm 并发生成一组变体，用于上传后的预热
func (e *Engine) Warm(ctx context.Context, sourcePath string, specs []Spec) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			_, err := e.GetOrCreateVariant(ctx, sourcePath, spec, true)
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) generate(ctx context.Context, sourcePath, variantPath string, spec Spec) error {
	const op = "variant.generate"
	start := time.Now()

	params, err := spec.Params()
	if err != nil {
		return err
	}

	src, err := e.sourceDimensions(ctx, sourcePath)
	if err != nil {
		return apperr.Processing(op, sourcePath, err)
	}

	width, height := ResolveDimensions(spec.Width, spec.Height, src.Width, src.Height)
	target := Target{Width: width, Height: height, Quality: spec.Quality, Sigma: params.Sigma}

	dir := filepath.Dir(variantPath)
	_, statErr := os.Stat(dir)
	createdDir := os.IsNotExist(statErr)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.Processing(op, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(variantPath))
	if err != nil {
		return apperr.Processing(op, dir, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.render(ctx, spec.Operation, sourcePath, tmpPath, target); err != nil {
		if createdDir {
			// 仅删除空目录，其他源图的同名变体不受影响
			_ = os.Remove(dir)
		}
		return apperr.Processing(op, sourcePath, err)
	}

	if err := os.Rename(tmpPath, variantPath); err != nil {
		_ = os.Remove(tmpPath)
		return apperr.Processing(op, variantPath, err)
	}

	e.metrics.VariantGenerated(spec.Operation, e.backend.Name(), time.Since(start))
	e.log.Debug().
		Str("source", sourcePath).
		Str("variant", spec.DirName()).
		Int("width", width).
		Int("height", height).
		Dur("elapsed", time.Since(start)).
		Msg("variant generated")
	return nil
}

// render 在独立 goroutine 中调用后端，超时或取消时放弃等待并清理临时文件
func (e *Engine) render(ctx context.Context, operation, src, tmpPath string, t Target) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("backend panic: %v", r)
			}
		}()
		done <- dispatch(e.backend, operation, src, tmpPath, t)
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = os.Remove(tmpPath)
		}
		return err
	case <-ctx.Done():
		go func() {
			<-done
			_ = os.Remove(tmpPath)
		}()
		return fmt.Errorf("variant generation aborted: %w", ctx.Err())
	}
}

// sourceDimensions 读取源图尺寸，结果按文件大小与修改时间缓存
func (e *Engine) sourceDimensions(ctx context.Context, sourcePath string) (imagemeta.Dimensions, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return imagemeta.Dimensions{}, err
	}
	if !info.Mode().IsRegular() {
		return imagemeta.Dimensions{}, fmt.Errorf("source is not a regular file")
	}

	key := e.keys.Build(sourcePath, strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10))
	var dims imagemeta.Dimensions
	if e.dims != nil {
		if err := e.dims.Get(ctx, key, &dims); err == nil && dims.Width > 0 && dims.Height > 0 {
			return dims, nil
		}
	}

	dims, err = imagemeta.Probe(sourcePath)
	if err != nil {
		return imagemeta.Dimensions{}, err
	}

	if e.dims != nil {
		if err := e.dims.Set(ctx, key, dims, e.dimTTL); err != nil {
			e.log.Warn().Err(err).Str("source", sourcePath).Msg("failed to cache source dimensions")
		}
	}
	return dims, nil
}
