package prefcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"meal-plan-personalizer/internal/pkg/common"
)

const refreshTimeout = 30 * time.Second

// refreshPool 背景偏好檔更新工作池
// 有界佇列，滿載時丟棄新任務（快取仍有效，下一次讀取會再排程）
type refreshPool struct {
	manager *Manager
	jobs    chan string
	workers int

	mu      sync.Mutex
	pending map[string]bool

	wg   sync.WaitGroup
	once sync.Once
}

func newRefreshPool(m *Manager, workers, queueSize int) *refreshPool {
	return &refreshPool{
		manager: m,
		jobs:    make(chan string, queueSize),
		workers: workers,
		pending: make(map[string]bool),
	}
}

func (p *refreshPool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *refreshPool) stop() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// enqueue 排入背景更新，同一使用者只保留一個待處理任務
func (p *refreshPool) enqueue(userID string) {
	p.mu.Lock()
	if p.pending[userID] {
		p.mu.Unlock()
		return
	}
	p.pending[userID] = true
	p.mu.Unlock()

	select {
	case p.jobs <- userID:
		common.LogDebug("Scheduled background profile refresh",
			zap.String("user_id", userID))
	default:
		p.clearPending(userID)
		common.LogWarn("Refresh queue full, dropping task",
			zap.String("user_id", userID))
	}
}

func (p *refreshPool) worker(id int) {
	defer p.wg.Done()
	for userID := range p.jobs {
		p.run(id, userID)
	}
}

func (p *refreshPool) run(workerID int, userID string) {
	defer p.clearPending(userID)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	p.manager.rebuild(ctx, userID)

	common.LogDebug("Background profile refresh completed",
		zap.Int("worker", workerID),
		zap.String("user_id", userID),
		zap.Duration("duration", time.Since(start)))
}

func (p *refreshPool) clearPending(userID string) {
	p.mu.Lock()
	delete(p.pending, userID)
	p.mu.Unlock()
}
