package gc

// 本文件实现 spec §4.G："增量步进驱动器"：按状态机逐步推进一次 GC 步，
// 把每一步消耗的"字节成本"累计起来，供 Step 按照 stepmul 换算成的字节预算
// 决定要跑多少个内部步骤。

// oneStep 推进状态机恰好一步，返回本步骤的字节成本。成本为 maxMem 表示
// "当前不能运行这一步"（仅在原子步/终结阶段遇到正在执行的 trace 时发生），
// 调用方应停止当前 Step 调用并等待下次机会。
func (c *Collector) oneStep(r Roots) int64 {
	switch c.state {
	case StatePause:
		c.enterPropagate(r)
		return 0

	case StatePropagate:
		if c.gray != nil {
			c.stats.MarkedObjects++
			return c.propagateOne()
		}
		c.state = StateAtomic
		return 0

	case StateAtomic:
		if !c.atomicReady() {
			return int64(maxMem)
		}
		c.runAtomic(r)
		return 0

	case StateSweepString:
		before := c.total
		c.stepSweepString()
		c.stats.SweptBytes += before - c.total
		return before - c.total + SweepCost

	case StateSweep:
		before := c.total
		c.stepSweep(SweepMax)
		c.stats.SweptBytes += before - c.total
		if c.state == StatePause {
			c.logCycle()
		}
		return int64(SweepMax * SweepCost)

	case StateFinalize:
		if c.mmudata == nil {
			c.state = StatePause
			c.debt = 0
			c.logCycle()
			return 0
		}
		if c.jitBase {
			return int64(maxMem)
		}
		c.stats.Finalized++
		return c.finalizeOne()

	default:
		return 0
	}
}

// Step 运行增量回收器一个"预算量子"：把 budget（通常是本次分配的字节数乘以
// stepmul/100）换算成内部步数，重复调用 oneStep 直到花光预算或完成一整轮
// （回到 Pause）。返回是否在本次调用中完成了一整轮收集。
func (c *Collector) Step(r Roots, budget int64) (finishedCycle bool) {
	if !c.enabled {
		return false
	}
	if c.kind == KindGenerational {
		if c.total >= c.threshold {
			c.GenStep(r)
			return true
		}
		return false
	}
	if budget <= 0 {
		budget = StepSize
	}
	for budget > 0 {
		cost := c.oneStep(r)
		if cost == int64(maxMem) {
			// 这一步暂时跑不了（正有 trace 在执行），退出等待下次调用。
			return false
		}
		if c.state == StatePause {
			c.debt = 0
			return true
		}
		budget -= cost
	}
	return false
}

// FullGC 强制执行一次完整收集（对应 spec 的显式 FullGC()）。分代模式下
// 委托给 fullGenerational；增量模式下对应 fullinc：如果当前周期卡在
// Propagate/Atomic 中途，先不翻转 currentwhite、直接把清除游标重置到
// 整条主链表、跳到 SweepString 阶段跑完这次清除（因为还没翻转白色，
// 这一遍清除不会误杀任何存活对象，等价于"假装这轮标记提前结束"），
// 然后正常跑一轮完整的新周期，最后按 pause 百分比重新计算 threshold。
func (c *Collector) FullGC(r Roots) {
	if c.kind == KindGenerational {
		c.fullGenerational(r)
		return
	}
	if c.state == StatePropagate || c.state == StateAtomic {
		c.sweepPrev = &c.rootSentinel
		c.gray, c.grayAgain, c.weak = nil, nil, nil
		c.state = StateSweepString
		c.sweepStr = 0
	}
	for c.state == StateSweepString || c.state == StateSweep {
		c.oneStep(r)
	}
	c.state = StatePause
	c.finishCycle(r)
	c.threshold = (c.estimate / 100) * int64(c.pause)
}

// finishCycle 从当前状态一路跑到下一次 Pause（不限成本）。
func (c *Collector) finishCycle(r Roots) {
	for c.state != StatePause {
		cost := c.oneStep(r)
		if cost == int64(maxMem) {
			// 无法在 trace 执行期间完成；调用方必须先退出 trace。
			return
		}
	}
}

// NeedsCollection 判断是否应该开始新一轮周期（增量模式下，total 超过
// threshold 即触发；分代模式见 generational.go 的 genstep 独立判断）。
func (c *Collector) NeedsCollection() bool {
	return c.state == StatePause && c.total >= c.threshold
}

// ChangeMode 在增量/分代之间切换收集策略。对应 spec §4.H 的 enterinc/entergen。
func (c *Collector) ChangeMode(kind Kind, r Roots) {
	if c.kind == kind {
		return
	}
	switch kind {
	case KindGenerational:
		c.enterGenerational(r)
	case KindIncremental:
		c.enterIncremental()
	}
}
