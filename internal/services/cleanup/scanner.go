package cleanup

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoixa/media-album/utils"
)

const scanTimeout = 10 * time.Minute

// Scanner 周期性执行清理
type Scanner struct {
	reaper   *Reaper
	interval time.Duration
	opts     Options
	stopCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewScanner 创建周期清理器
func NewScanner(reaper *Reaper, interval time.Duration, opts Options) *Scanner {
	return &Scanner{
		reaper:   reaper,
		interval: interval,
		opts:     opts,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 启动清理器
func (s *Scanner) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(s.interval)
	utils.SafeGo(func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.scan()
			case <-s.stopCh:
				return
			}
		}
	})
	utils.LogIfDevf("[Reaper] Started with interval %v", s.interval)
}

// Stop 停止清理器并等待当前一轮结束
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.started.Load() {
			<-s.done
		}
	})
}

func (s *Scanner) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	report, err := s.reaper.Run(ctx, s.opts)
	if err != nil {
		s.reaper.log.Error().Err(err).Msg("periodic cleanup failed")
		return
	}
	if report.DeletedMedia+report.DeletedAlbums+report.DeletedDirs > 0 {
		s.reaper.log.Info().
			Int("media", report.DeletedMedia).
			Int("albums", report.DeletedAlbums).
			Int("dirs", report.DeletedDirs).
			Int("failures", report.Failures).
			Msg("periodic cleanup finished")
	}
}
