package worker

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/anoixa/media-album/utils"
	"github.com/rs/zerolog"
)

// Pool 协程池，用于上传后的变体预热等后台任务
type Pool struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	log     zerolog.Logger

	submitted uint64
	executed  uint64
	failed    uint64
	dropped   uint64
}

// Stats 协程池统计信息
type Stats struct {
	WorkerCount int
	QueueLen    int
	QueueCap    int
	Submitted   uint64
	Executed    uint64
	Failed      uint64
	Dropped     uint64
}

// NewPool 创建并启动协程池
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	p := &Pool{
		workers: workers,
		queue:   make(chan func(), queueSize),
		log:     utils.Logger("worker"),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	utils.LogIfDevf("Worker pool started with %d workers", workers)
	return p
}

// Submit 提交任务（非阻塞，队列满或已停止时丢弃并计入 Dropped）
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		atomic.AddUint64(&p.dropped, 1)
		return false
	}

	select {
	case p.queue <- task:
		atomic.AddUint64(&p.submitted, 1)
		return true
	default:
		atomic.AddUint64(&p.dropped, 1)
		p.log.Warn().Msg("worker pool queue is full, task dropped")
		return false
	}
}

// Stop 停止接收任务，等待队列中的任务执行完毕
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	utils.LogIfDev("Worker pool stopped")
}

// GetStats 返回统计信息
func (p *Pool) GetStats() Stats {
	return Stats{
		WorkerCount: p.workers,
		QueueLen:    len(p.queue),
		QueueCap:    cap(p.queue),
		Submitted:   atomic.LoadUint64(&p.submitted),
		Executed:    atomic.LoadUint64(&p.executed),
		Failed:      atomic.LoadUint64(&p.failed),
		Dropped:     atomic.LoadUint64(&p.dropped),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		if task == nil {
			continue
		}
		p.execute(task)
	}
}

// execute 执行任务并捕获 panic
func (p *Pool) execute(task func()) {
	defer func() {
		atomic.AddUint64(&p.executed, 1)
		if r := recover(); r != nil {
			atomic.AddUint64(&p.failed, 1)
			p.log.Error().Interface("panic", r).Msg("panic recovered in worker task")
		}
	}()
	task()
}
