package gc

import (
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

// 本文件实现 SPEC_FULL.md §4.K/§4.M：周期耗时统计、分配点追踪与泄漏报告。
// 这些都是纯诊断功能，不参与可达性判定，关闭 debug 模式时几乎零开销。

// CycleStats 记录一次收集周期（Pause 到下一次 Pause）各阶段处理的对象/
// 字节数，供 LeakReport 和日志输出使用。
type CycleStats struct {
	Kind          string // "incremental" 或 "generational"
	MarkedObjects int64  // 标记阶段处理的对象数
	SweptObjects  int64  // 清除阶段释放的对象数
	SweptBytes    int64  // 清除阶段释放的字节数
	Finalized     int64  // 本周期运行过的终结器数量
}

// AllocationSite 记录一个对象的分配来源，仅在 debug 模式下维护。
type AllocationSite struct {
	TypeName string // 对象具体类型名
	Site     string // 调用方提供的分配点标识（通常是"文件:行号"或函数名）
}

// LeakReport 是按分配点聚合之后的疑似泄漏报告：同一个分配点产生的对象，
// 如果数量异常地多，往往意味着某处持有了不该持有的引用。
type LeakReport struct {
	Site  string
	Count int
}

// RecordAllocationSite 在 debug 模式下记录一个对象的分配点。
func (c *Collector) RecordAllocationSite(o GCObject, site string) {
	if !c.leakDetect {
		return
	}
	c.allocSites[o] = AllocationSite{TypeName: o.GCHeader().typeTag.String(), Site: site}
}

// LeakReport 按分配点对当前仍存活、且处于 debug 追踪下的对象计数，
// 数量降序排列。调用方通常在长时间运行后周期性调用它来定位异常增长的
// 分配点。不会修改收集器状态。
func (c *Collector) LeakReport() []LeakReport {
	counts := make(map[string]int)
	for _, site := range c.allocSites {
		counts[site.Site]++
	}
	reports := make([]LeakReport, 0, len(counts))
	for site, n := range counts {
		reports = append(reports, LeakReport{Site: site, Count: n})
	}
	for i := 1; i < len(reports); i++ {
		for j := i; j > 0 && reports[j].Count > reports[j-1].Count; j-- {
			reports[j], reports[j-1] = reports[j-1], reports[j]
		}
	}
	return reports
}

// logCycle 在一次周期结束（回到 Pause）时输出一条结构化日志，记录本次
// 周期的统计信息；同时把 stats 挪到 lastCycle 供外部查询，并清零累加器。
func (c *Collector) logCycle() {
	c.lastCycle = c.stats
	c.log.Debug("gc cycle complete",
		zap.String("kind", c.stats.Kind),
		zap.Int64("marked", c.stats.MarkedObjects),
		zap.Int64("swept_objects", c.stats.SweptObjects),
		zap.Int64("swept_bytes", c.stats.SweptBytes),
		zap.Int64("finalized", c.stats.Finalized),
		zap.Int64("total", c.total),
		zap.Int64("estimate", c.estimate),
	)
}

func (c *Collector) kindString() string {
	if c.kind == KindGenerational {
		return "generational"
	}
	return "incremental"
}

// LastCycleStats 返回上一次完整周期的统计快照。
func (c *Collector) LastCycleStats() CycleStats { return c.lastCycle }

// DumpDiagnostics 把当前的周期统计与泄漏报告序列化为 JSON，供外部监控
// 采集或命令行工具打印；走 segmentio/encoding/json 而不是标准库 encoding/json
// 是因为这个诊断端点可能在高频轮询场景下被调用，省下的分配和 CPU 有实际
// 意义。
func (c *Collector) DumpDiagnostics() ([]byte, error) {
	payload := struct {
		State      string       `json:"state"`
		Kind       string       `json:"kind"`
		Total      int64        `json:"total"`
		Estimate   int64        `json:"estimate"`
		Threshold  int64        `json:"threshold"`
		LastCycle  CycleStats   `json:"last_cycle"`
		LeakReport []LeakReport `json:"leak_report,omitempty"`
	}{
		State:     c.state.String(),
		Kind:      c.kindString(),
		Total:     c.total,
		Estimate:  c.estimate,
		Threshold: c.threshold,
		LastCycle: c.lastCycle,
	}
	if c.leakDetect {
		payload.LeakReport = c.LeakReport()
	}
	return json.Marshal(payload)
}
