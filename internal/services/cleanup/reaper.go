// Package cleanup 回收过期的暂存媒体、无人引用的空相册以及孤立的上传目录
package cleanup

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/database/repo/albums"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/database/schema"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/metrics"
	"github.com/anoixa/media-album/storage"
	"github.com/rs/zerolog"
)

// DefaultMinTempAge 暂存媒体允许的最小回收年龄
const DefaultMinTempAge = 5 * time.Minute

// FileRemover 删除媒体文件，返回成功与失败数量
type FileRemover interface {
	RemoveFiles(ctx context.Context, items []models.Media) (removed, failed int)
}

// Options 单次清理的范围
type Options struct {
	// Temp 回收超过 TempMaxAge 的暂存媒体，并检查其所在相册
	Temp       bool
	TempMaxAge time.Duration

	// AllAlbums 全量扫描空相册；否则只检查 AlbumIDs 与暂存回收涉及的相册
	AllAlbums bool
	AlbumIDs  []uint

	// Dirs 删除没有相册记录的上传目录
	Dirs bool

	DryRun bool
}

// Report 清理结果
type Report struct {
	DeletedMedia  int
	DeletedAlbums int
	KeptAlbums    int
	DeletedDirs   int
	Failures      int
}

// Reaper 孤立数据回收器
type Reaper struct {
	albums  *albums.Repository
	media   *mediarepo.Repository
	storage storage.FileSystem
	files   FileRemover
	refs    []schema.Reference
	minAge  time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewReaper 创建回收器
// refs 为启动时发现并合并的相册外键引用
func NewReaper(
	albumRepo *albums.Repository,
	mediaRepo *mediarepo.Repository,
	fs storage.FileSystem,
	files FileRemover,
	refs []schema.Reference,
	minAge time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Reaper {
	if minAge <= 0 {
		minAge = DefaultMinTempAge
	}
	return &Reaper{
		albums:  albumRepo,
		media:   mediaRepo,
		storage: fs,
		files:   files,
		refs:    refs,
		minAge:  minAge,
		metrics: m,
		log:     logger,
		now:     time.Now,
	}
}

// References 返回参与判断的外键引用
func (r *Reaper) References() []schema.Reference {
	return r.refs
}

// SweepTempMedia 删除创建时间早于 now-maxAge 的暂存媒体，返回删除数量与涉及的相册
func (r *Reaper) SweepTempMedia(ctx context.Context, maxAge time.Duration) (int, []uint, error) {
	deleted, touched, _, err := r.sweepTemp(ctx, maxAge)
	return deleted, touched, err
}

func (r *Reaper) sweepTemp(ctx context.Context, maxAge time.Duration) (deleted int, touched []uint, failures int, err error) {
	cutoff, err := r.cutoff(maxAge)
	if err != nil {
		return 0, nil, 0, err
	}

	repo := r.media.WithContext(ctx)
	expired, err := repo.FindExpired(cutoff, 0)
	if err != nil {
		return 0, nil, 0, err
	}

	albumSet := make(map[uint]struct{})
	var removed []models.Media
	for _, m := range expired {
		if ctx.Err() != nil {
			return 0, nil, 0, ctx.Err()
		}
		if m.AlbumID != nil {
			albumSet[*m.AlbumID] = struct{}{}
		}

		// 删除语句重新带上过期条件，期间被提交的媒体不会命中
		ok, err := repo.DeleteIfExpired(m.ID, cutoff)
		if err != nil {
			failures++
			r.log.Error().Err(err).Uint("media_id", m.ID).Msg("failed to delete expired media")
			continue
		}
		if !ok {
			continue
		}
		removed = append(removed, m)
	}

	_, failedFiles := r.files.RemoveFiles(ctx, removed)
	failures += failedFiles

	r.metrics.ReaperDeleted("media", len(removed))
	r.metrics.ReaperFailed(failures)
	r.log.Info().
		Time("cutoff", cutoff).
		Int("deleted", len(removed)).
		Int("failures", failures).
		Msg("temporary media swept")

	return len(removed), slices.Sorted(maps.Keys(albumSet)), failures, nil
}

// SweepEmptyAlbums 删除没有媒体且没有被任何外键引用的相册及其目录
// albumIDs 为 nil 时扫描全部相册；kept 为空但仍被引用的相册数量
func (r *Reaper) SweepEmptyAlbums(ctx context.Context, albumIDs []uint) (int, int, error) {
	deleted, kept, _, err := r.sweepAlbums(ctx, albumIDs)
	return deleted, kept, err
}

func (r *Reaper) sweepAlbums(ctx context.Context, albumIDs []uint) (deleted, kept, failures int, err error) {
	repo := r.albums.WithContext(ctx)
	candidates, err := repo.EmptyAlbumIDs(albumIDs)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, id := range candidates {
		if ctx.Err() != nil {
			return deleted, kept, failures, ctx.Err()
		}

		ok, err := repo.DeleteIfUnreferenced(id, r.refs)
		if err != nil {
			failures++
			r.log.Error().Err(err).Uint("album_id", id).Msg("failed to delete album")
			continue
		}
		if !ok {
			kept++
			continue
		}
		deleted++

		if err := r.storage.RemoveAll(ctx, albumDir(id)); err != nil {
			failures++
			r.log.Error().Err(err).Uint("album_id", id).Msg("failed to delete album directory")
		}
	}

	r.metrics.ReaperDeleted("album", deleted)
	r.metrics.ReaperFailed(failures)
	r.log.Info().
		Int("candidates", len(candidates)).
		Int("deleted", deleted).
		Int("kept", kept).
		Msg("empty albums swept")

	return deleted, kept, failures, nil
}

// SweepOrphanDirectories 删除上传根目录下没有对应相册记录的数字目录
func (r *Reaper) SweepOrphanDirectories(ctx context.Context) (int, error) {
	deleted, _, err := r.sweepDirs(ctx, false)
	return deleted, err
}

func (r *Reaper) sweepDirs(ctx context.Context, dryRun bool) (deleted, failures int, err error) {
	orphans, err := r.orphanDirs(ctx)
	if err != nil {
		return 0, 0, err
	}
	if dryRun {
		return len(orphans), 0, nil
	}

	for _, dir := range orphans {
		if err := r.storage.RemoveAll(ctx, dir); err != nil {
			failures++
			r.log.Error().Err(err).Str("dir", dir).Msg("failed to delete orphan directory")
			continue
		}
		deleted++
	}

	r.metrics.ReaperDeleted("directory", deleted)
	r.metrics.ReaperFailed(failures)
	r.log.Info().Int("deleted", deleted).Int("failures", failures).Msg("orphan directories swept")
	return deleted, failures, nil
}

func (r *Reaper) orphanDirs(ctx context.Context) ([]string, error) {
	dirs, err := r.storage.ListDirs(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]string)
	ids := make([]uint, 0, len(dirs))
	for _, dir := range dirs {
		id, err := strconv.ParseUint(dir, 10, 64)
		if err != nil || id == 0 || strconv.FormatUint(id, 10) != dir {
			continue
		}
		byID[uint(id)] = dir
		ids = append(ids, uint(id))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	existing, err := r.albums.WithContext(ctx).ExistingIDs(ids)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, id := range ids {
		if !existing[id] {
			orphans = append(orphans, byID[id])
		}
	}
	slices.Sort(orphans)
	return orphans, nil
}

// Run 按选项依次执行清理，单项失败只计数不中断
func (r *Reaper) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.DryRun {
		return r.plan(ctx, opts)
	}

	var report Report
	var touched []uint

	if opts.Temp {
		deleted, albumIDs, failures, err := r.sweepTemp(ctx, opts.TempMaxAge)
		if err != nil {
			return report, err
		}
		report.DeletedMedia = deleted
		report.Failures += failures
		touched = albumIDs
	}

	if scope, ok := albumScope(opts, touched); ok {
		deleted, kept, failures, err := r.sweepAlbums(ctx, scope)
		if err != nil {
			return report, err
		}
		report.DeletedAlbums = deleted
		report.KeptAlbums = kept
		report.Failures += failures
	}

	if opts.Dirs {
		deleted, failures, err := r.sweepDirs(ctx, false)
		if err != nil {
			return report, err
		}
		report.DeletedDirs = deleted
		report.Failures += failures
	}

	return report, nil
}

// plan 只统计将被删除的对象，不做任何修改
func (r *Reaper) plan(ctx context.Context, opts Options) (Report, error) {
	var report Report

	// 相册 ID -> 将被删除的暂存媒体数量
	pending := make(map[uint]int64)
	var touched []uint

	if opts.Temp {
		cutoff, err := r.cutoff(opts.TempMaxAge)
		if err != nil {
			return report, err
		}
		expired, err := r.media.WithContext(ctx).FindExpired(cutoff, 0)
		if err != nil {
			return report, err
		}
		report.DeletedMedia = len(expired)

		set := make(map[uint]struct{})
		for _, m := range expired {
			if m.AlbumID != nil {
				pending[*m.AlbumID]++
				set[*m.AlbumID] = struct{}{}
			}
		}
		touched = slices.Sorted(maps.Keys(set))
	}

	if scope, ok := albumScope(opts, touched); ok {
		candidates, err := r.albumsEmptyAfter(ctx, scope, pending)
		if err != nil {
			return report, err
		}
		for _, id := range candidates {
			referenced, err := r.albums.WithContext(ctx).IsReferenced(id, r.refs)
			if err != nil {
				report.Failures++
				continue
			}
			if referenced {
				report.KeptAlbums++
			} else {
				report.DeletedAlbums++
			}
		}
	}

	if opts.Dirs {
		deleted, _, err := r.sweepDirs(ctx, true)
		if err != nil {
			return report, err
		}
		report.DeletedDirs = deleted
	}

	return report, nil
}

// albumsEmptyAfter 返回回收暂存媒体后将变为空的相册
func (r *Reaper) albumsEmptyAfter(ctx context.Context, scope []uint, pending map[uint]int64) ([]uint, error) {
	empty, err := r.albums.WithContext(ctx).EmptyAlbumIDs(scope)
	if err != nil {
		return nil, err
	}

	result := append([]uint(nil), empty...)
	seen := make(map[uint]bool, len(empty))
	for _, id := range empty {
		seen[id] = true
	}

	for _, id := range slices.Sorted(maps.Keys(pending)) {
		if seen[id] || (scope != nil && !slices.Contains(scope, id)) {
			continue
		}
		count, err := r.media.WithContext(ctx).CountByAlbum(id)
		if err != nil {
			return nil, err
		}
		if count == pending[id] {
			result = append(result, id)
		}
	}
	return result, nil
}

func (r *Reaper) cutoff(maxAge time.Duration) (time.Time, error) {
	if maxAge < r.minAge {
		return time.Time{}, apperr.Validation("cleanup.temp", "max age %s is below the minimum %s", maxAge, r.minAge)
	}
	return r.now().Add(-maxAge), nil
}

// albumScope 计算相册扫描范围，ok 为 false 表示不需要扫描
func albumScope(opts Options, touched []uint) ([]uint, bool) {
	if opts.AllAlbums {
		return nil, true
	}

	set := make(map[uint]struct{}, len(opts.AlbumIDs)+len(touched))
	for _, id := range opts.AlbumIDs {
		set[id] = struct{}{}
	}
	for _, id := range touched {
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return nil, false
	}
	return slices.Sorted(maps.Keys(set)), true
}

func albumDir(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
