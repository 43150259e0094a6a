package workerpool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Task 定义任务函数类型
type Task func()

// Pool 按 key 分片的 Worker Pool
// 同一个 key 的任务总是落到同一个 worker，按提交顺序执行；不同 key 并发执行
type Pool struct {
	shards []chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	closed sync.RWMutex
	logger *slog.Logger
}

// New 创建一个新的 Worker Pool
// workers: worker（分片）数量
// queueSize: 每个分片的任务队列大小
func New(workers int, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		shards: make([]chan Task, workers),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	for i := 0; i < workers; i++ {
		pool.shards[i] = make(chan Task, queueSize)
		pool.wg.Add(1)
		go pool.worker(i, pool.shards[i])
	}

	pool.logger.Info("Worker pool started",
		"workers", workers,
		"queue_size", queueSize)

	return pool
}

// worker 工作协程，队列关闭后把剩余任务执行完再退出
func (p *Pool) worker(id int, queue chan Task) {
	defer p.wg.Done()

	for task := range queue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panic recovered",
				"worker_id", id,
				"panic", r)
		}
	}()
	task()
}

func (p *Pool) shardFor(key string) chan Task {
	return p.shards[xxhash.Sum64String(key)%uint64(len(p.shards))]
}

// Submit 提交任务到 key 对应的分片
// 如果队列满了，会阻塞直到有空位或 Pool 被关闭
func (p *Pool) Submit(key string, task Task) bool {
	p.closed.RLock()
	defer p.closed.RUnlock()

	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.shardFor(key) <- task:
		return true
	}
}

// TrySubmit 尝试提交任务，如果队列满了立即返回 false
func (p *Pool) TrySubmit(key string, task Task) bool {
	p.closed.RLock()
	defer p.closed.RUnlock()

	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case p.shardFor(key) <- task:
		return true
	default:
		return false
	}
}

// Shutdown 优雅关闭 Worker Pool
// 停止接收新任务，等待已入队的任务完成
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.cancel()
		p.closed.Lock()
		for _, q := range p.shards {
			close(q)
		}
		p.closed.Unlock()
		p.wg.Wait()
		p.logger.Info("Worker pool shutdown completed")
	})
}
