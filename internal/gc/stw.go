package gc

import (
	"sync"
	"sync/atomic"
	"time"
)

// RootSource 由宿主（运行多个 worker goroutine 的调度器）实现，
// 用于在 STW 期间枚举所有 worker 当前持有的根对象。
type RootSource interface {
	// NumWorkers 返回当前需要等待进入安全点的 worker 数量。
	NumWorkers() int
	// CollectRoots 返回所有 worker 此刻可达的根对象集合。
	CollectRoots() Roots
}

// STWStats 记录 STW 暂停的次数与耗时分布。
type STWStats struct {
	STWCount       int64
	TotalSTWTimeNs int64
	MaxSTWTimeNs   int64
	LastSTWTimeNs  int64
	AvgSTWTimeNs   int64
}

// MultiThreadCollector 把单线程 Collector 包装成多 worker 场景下的安全入口：
// 标记/清除的推进仍然完全在调用 goroutine 内单线程执行，STW 只负责让所有
// worker 在进入安全点之前不再变更对象图。
type MultiThreadCollector struct {
	*Collector

	roots RootSource

	stwMu          sync.Mutex
	stwActive      atomic.Bool
	safePointCount atomic.Int32

	stwCount       int64
	totalSTWTimeNs int64
	maxSTWTimeNs   int64
	lastSTWTimeNs  int64

	safepointTimeout time.Duration
}

// NewMultiThreadCollector 包装一个已存在的 Collector，使其可以被多个
// worker goroutine 共享。
func NewMultiThreadCollector(c *Collector, roots RootSource) *MultiThreadCollector {
	return &MultiThreadCollector{
		Collector:        c,
		roots:            roots,
		safepointTimeout: 5 * time.Second,
	}
}

// RequestSTW 请求所有 worker 进入安全点，阻塞直到全部到达或超时。
// 调用方必须在完成收集操作后调用 ReleaseSTW。
func (m *MultiThreadCollector) RequestSTW() {
	m.stwMu.Lock()
	start := time.Now()

	m.stwActive.Store(true)
	m.safePointCount.Store(0)

	numWorkers := 0
	if m.roots != nil {
		numWorkers = m.roots.NumWorkers()
	}

	deadline := time.After(m.safepointTimeout)
	for m.safePointCount.Load() < int32(numWorkers) {
		select {
		case <-deadline:
			m.lastSTWTimeNs = time.Since(start).Nanoseconds()
			return
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}

	m.lastSTWTimeNs = time.Since(start).Nanoseconds()
}

// ReleaseSTW 恢复所有 worker 的执行。
func (m *MultiThreadCollector) ReleaseSTW() {
	m.stwCount++
	m.totalSTWTimeNs += m.lastSTWTimeNs
	if m.lastSTWTimeNs > m.maxSTWTimeNs {
		m.maxSTWTimeNs = m.lastSTWTimeNs
	}
	m.stwActive.Store(false)
	m.stwMu.Unlock()
}

// EnterSafePoint 由 worker 在检测到 STW 请求后调用，阻塞直到 STW 结束。
func (m *MultiThreadCollector) EnterSafePoint() {
	if !m.stwActive.Load() {
		return
	}
	m.safePointCount.Add(1)
	for m.stwActive.Load() {
		time.Sleep(100 * time.Microsecond)
	}
}

// IsSTWActive 报告是否有 STW 正在进行。
func (m *MultiThreadCollector) IsSTWActive() bool {
	return m.stwActive.Load()
}

// CheckSafePoint 是 worker 热路径上的安全点检查：仅在 STW 激活时阻塞。
func (m *MultiThreadCollector) CheckSafePoint() {
	if m.stwActive.Load() {
		m.EnterSafePoint()
	}
}

// FullGCWithSTW 请求 STW、收集所有 worker 的根、执行一次完整收集、释放 STW。
func (m *MultiThreadCollector) FullGCWithSTW() {
	if !m.Enabled() {
		return
	}
	m.RequestSTW()
	defer m.ReleaseSTW()

	var r Roots
	if m.roots != nil {
		r = m.roots.CollectRoots()
	}
	m.Collector.FullGC(r)
}

// StepWithSTW 请求 STW、收集所有 worker 的根、推进一步收集、释放 STW。
func (m *MultiThreadCollector) StepWithSTW(budget int64) bool {
	if !m.Enabled() {
		return false
	}
	m.RequestSTW()
	defer m.ReleaseSTW()

	var r Roots
	if m.roots != nil {
		r = m.roots.CollectRoots()
	}
	return m.Collector.Step(r, budget)
}

// TryCollect 在没有其它 STW 正在进行时触发一次完整收集，返回是否成功触发。
func (m *MultiThreadCollector) TryCollect() bool {
	if !m.stwMu.TryLock() {
		return false
	}
	m.stwMu.Unlock()
	m.FullGCWithSTW()
	return true
}

// Stats 返回 STW 暂停次数与耗时统计。
func (m *MultiThreadCollector) Stats() STWStats {
	avg := int64(0)
	if m.stwCount > 0 {
		avg = m.totalSTWTimeNs / m.stwCount
	}
	return STWStats{
		STWCount:       m.stwCount,
		TotalSTWTimeNs: m.totalSTWTimeNs,
		MaxSTWTimeNs:   m.maxSTWTimeNs,
		LastSTWTimeNs:  m.lastSTWTimeNs,
		AvgSTWTimeNs:   avg,
	}
}
