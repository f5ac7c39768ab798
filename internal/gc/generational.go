package gc

// 本文件实现 spec §4.H："分代叠加"：年轻代收集（young collection）、首次进入
// 分代模式的"升级为老年代"扫描、退回增量模式的"全部翻白"扫描，以及分代步
// 调度器 genstep。

// markOldRange 在开始一次年轻代收集之前，把 [from, to) 区间内处于 OLD1 年龄
// 的黑色对象重新退回灰色并标记：它们上次扫描之后可能获得了新的白色子对象
// （经由写屏障的 BackBarrier 之外没有被捕捉到），必须在本轮年轻代收集中
// 重新遍历一次。灰色对象本来就已经挂在某个工作队列上，会在原子步里处理，
// 不需要在这里操心。对应 lj_gc.c 的 markold。
func (c *Collector) markOldRange(from, to *Header) {
	for o := from; o != nil && o != to; o = o.next {
		if o.GetAge() == AgeOld1 && o.IsBlack() {
			o.BlackToGray()
			c.mark(o.self)
		}
	}
}

// markStringsOld 是 markOldRange 在字符串哈希表上的特化版本。字符串在本
// 实现里从不进入黑色状态（mark() 对字符串只做白转灰就返回），所以这里
// 实际上是个安全的空操作，保留下来只是为了与年轻代收集的步骤顺序保持
// 一一对应，便于对照原始算法阅读。
func (c *Collector) markStringsOld() {
	for _, chain := range c.strHash {
		for _, s := range chain {
			if s.Header.GetAge() == AgeOld1 && s.Header.IsBlack() {
				s.Header.BlackToGray()
				c.mark(s)
			}
		}
	}
}

// sweepGenRange 清除 (prev, limit) 之间的节点：白色且非 Fixed 的对象被释放
// （从链表摘下，若它恰好是 anchor 指向的节点则一并修正 anchor）；存活对象
// 按 nextAge 表推进年龄，NEW 年龄的对象顺带翻成 currentwhite（分代模式下
// 年龄来决定存活状态，颜色位此后不再使用，但保持白色便于和增量模式复用
// 同一套 IsDead 判定）。返回最终的 prev，供调用方续接下一段区间。
// 对应 lj_gc.c 的 sweepgen。
func (c *Collector) sweepGenRange(prev *Header, limit *Header, anchor **Header) *Header {
	for prev.next != nil && prev.next != limit {
		h := prev.next
		if h.IsWhite() && !h.IsFixed() {
			prev.next = h.next
			if anchor != nil && *anchor == h {
				*anchor = h.next
			}
			c.freeObject(h)
			continue
		}
		if h.GetAge() == AgeNew {
			h.MakeWhite(c.currentWhite)
		}
		h.SetAge(nextAge[h.GetAge()])
		prev = h
	}
	return prev
}

// sweepStringsGen 是 sweepGenRange 在字符串哈希表（切片表示）上的版本。
func (c *Collector) sweepStringsGen() {
	for i, chain := range c.strHash {
		kept := chain[:0]
		for _, s := range chain {
			h := &s.Header
			if h.IsWhite() && !h.IsFixed() {
				c.freeObject(h)
				continue
			}
			if h.GetAge() == AgeNew {
				h.MakeWhite(c.currentWhite)
			}
			h.SetAge(nextAge[h.GetAge()])
			kept = append(kept, s)
		}
		c.strHash[i] = kept
	}
}

// youngCollection 执行一次年轻代（minor）收集：先重新标记 OLD1 对象，再跑
// 一次完整的原子步（标记阶段本身增量模式和分代模式共用同一套 mark/atomic
// 逻辑），然后分三段清除主链表、字符串表、userdata 链表并推进各自的三个
// 年龄锚点，最后整理灰色工作队列、执行所有待处理的终结器。
// 对应 lj_gc.c 的 youngcollection。
func (c *Collector) youngCollection(r Roots) {
	c.markOldRange(c.survival, c.reallyOld)
	c.markOldRange(c.udataSur, c.udataRold)
	c.markStringsOld()

	c.runAtomic(r)

	p1 := c.sweepGenRange(&c.rootSentinel, c.survival, nil)
	c.sweepGenRange(p1, c.reallyOld, &c.old)
	c.reallyOld = c.old
	c.old = p1.next
	c.survival = c.rootSentinel.next

	c.sweepStringsGen()

	pu := c.sweepGenRange(&c.udataSentinel, c.udataSur, nil)
	c.sweepGenRange(pu, c.udataRold, &c.udataOld)
	c.udataRold = c.udataOld
	c.udataOld = pu.next
	c.udataSur = c.udataSentinel.next

	c.finishGenCycle(r)
}

// correctGrayList 在年轻代收集之后整理一条 gclist 工作队列：TOUCHED1 的表/
// userdata（本周期被写屏障触碰过的老对象）升级为 TOUCHED2 并保留在队列中，
// 等待下一轮年轻代收集再检查一次；TOUCHED2（已经完整经历过一轮年轻代收集
// 而没有被再次写入）晋升为普通 OLD 并移出队列；白色对象（已经确认不可达）
// 直接移出队列，留给下一次清除正常释放；线程只要不是白色就保留在队列上。
// 对应 lj_gc.c 的 correctgraylist，返回值用 gclist 字段重新串成新链表。
func (c *Collector) correctGrayList(head *Header) *Header {
	var newHead *Header
	for h := head; h != nil; {
		next := h.gclist
		switch h.typeTag {
		case TypeTable, TypeUserdata:
			if h.GetAge() == AgeTouched1 {
				h.GrayToBlack()
				h.ChangeAge(AgeTouched1, AgeTouched2)
				h.gclist = newHead
				newHead = h
			} else {
				if !h.IsWhite() {
					h.ChangeAge(AgeTouched2, AgeOld)
					h.GrayToBlack()
				}
				h.gclist = nil
			}
		default: // 线程
			if !h.IsWhite() {
				h.gclist = newHead
				newHead = h
			} else {
				h.gclist = nil
			}
		}
		h = next
	}
	return newHead
}

// correctGrayLists 把 grayagain 和 weak 两条队列各自整理一遍并合并回
// grayagain，供下一次传播阶段（GCSpropagate）消费。对应 correctgraylists。
func (c *Collector) correctGrayLists() {
	corrected := c.correctGrayList(c.grayAgain)
	weakCorrected := c.correctGrayList(c.weak)
	c.weak = nil
	c.grayAgain = appendGCList(corrected, weakCorrected)
}

func appendGCList(a, b *Header) *Header {
	if a == nil {
		return b
	}
	tail := a
	for tail.gclist != nil {
		tail = tail.gclist
	}
	tail.gclist = b
	return a
}

// finishGenCycle 收尾一次年轻代收集：整理灰色队列、回到 Propagate 状态
// （分代模式下标记阶段永远"刚刚开始过一轮"，不会停留在 Pause），并清空
// 本轮分离出来的全部待终结对象。对应 finishgencycle。
func (c *Collector) finishGenCycle(r Roots) {
	c.correctGrayLists()
	c.state = StatePropagate
	for c.mmudata != nil {
		c.finalizeOne()
	}
}

// runUntilState 反复推进状态机，直到到达 target 状态，或者遇到暂时无法
//运行的步骤（例如原子步撞上正在执行的 trace）。对应 lj_gc_runtilstate。
func (c *Collector) runUntilState(r Roots, target State) {
	for c.state != target {
		if c.oneStep(r) == int64(maxMem) {
			return
		}
	}
}

// whitelistRange 把链表上的每个对象都重置为当前白色、年龄归零。
// 对应 lj_gc.c 的 whitelist。
func (c *Collector) whitelistRange(sentinel *Header) {
	for h := sentinel.next; h != nil; h = h.next {
		h.MakeWhite(c.currentWhite)
		h.SetAge(AgeNew)
	}
}

func (c *Collector) whitelistStrings() {
	for _, chain := range c.strHash {
		for _, s := range chain {
			s.Header.MakeWhite(c.currentWhite)
			s.Header.SetAge(AgeNew)
		}
	}
}

// enterIncremental 把收集器从分代模式切回增量模式：所有存活对象翻白、年龄
// 归零，三组年龄锚点清空，状态回到 Pause。对应 enterinc。
//
// 与原始实现的一处偏差：原始版本只对主链表调用 whitelist，没有单独处理
// userdata 侧链——这是因为示例源码里 userdata 链表只在一次原子步内临时
// 存在。本实现里 userdata 自始至终维护在独立的 udataSentinel 链表上
// （见 object.go/collector.go 的设计），所以这里要对两条链表都做同样的
// 重置，否则切回增量模式后 userdata 会残留着分代模式下的年龄标记。
func (c *Collector) enterIncremental() {
	c.whitelistRange(&c.rootSentinel)
	c.whitelistRange(&c.udataSentinel)
	c.whitelistStrings()
	c.reallyOld, c.old, c.survival = nil, nil, nil
	c.udataRold, c.udataOld, c.udataSur = nil, nil, nil
	c.state = StatePause
	c.kind = KindIncremental
}

// sweep2old 清除一条链表（释放白色且非 Fixed 的死对象），把其余每个对象
// 的年龄直接置为 OLD（首次进入分代模式时，所有存活对象都被视为"老对象"，
// 不需要经过 SURVIVAL/OLD0/OLD1 的正常升级路径）。对应 sweep2old。
func (c *Collector) sweep2old(sentinel *Header) {
	prev := sentinel
	for prev.next != nil {
		h := prev.next
		if h.IsWhite() && !h.IsFixed() {
			prev.next = h.next
			c.freeObject(h)
			continue
		}
		h.SetAge(AgeOld)
		prev = h
	}
}

func (c *Collector) sweepStringsToOld() {
	for i, chain := range c.strHash {
		kept := chain[:0]
		for _, s := range chain {
			h := &s.Header
			if h.IsWhite() && !h.IsFixed() {
				c.freeObject(h)
				continue
			}
			h.SetAge(AgeOld)
			kept = append(kept, s)
		}
		c.strHash[i] = kept
	}
}

// enterGenerational 把收集器从增量模式切到分代模式：先跑完当前周期到
// Pause，再跑一轮到 Propagate 并立即执行一次原子步把所有可达对象标记完，
// 然后把它们全部升级为 OLD 年龄，三组年龄锚点都指向链表当前的起点
// （此刻链表上只剩老对象，一个对象都不会落在 [root, survival) 这种"新"
// 区间里），最后切换 kind、按总字节数重新估算 threshold。对应 entergen。
//
// 同样对 userdata 侧链做了原始版本没有的并行处理，理由同 enterIncremental。
func (c *Collector) enterGenerational(r Roots) {
	c.runUntilState(r, StatePause)
	c.runUntilState(r, StatePropagate)
	c.runAtomic(r)

	c.sweep2old(&c.rootSentinel)
	c.sweep2old(&c.udataSentinel)
	c.sweepStringsToOld()

	c.reallyOld, c.old, c.survival = c.rootSentinel.next, c.rootSentinel.next, c.rootSentinel.next
	c.udataRold, c.udataOld, c.udataSur = c.udataSentinel.next, c.udataSentinel.next, c.udataSentinel.next

	c.kind = KindGenerational
	c.estimate = c.total
	c.threshold = (c.total / 100) * int64(100+c.genMinorMul)
	c.finishGenCycle(r)
}

// fullGenerational 在分代模式下执行一次完整的主（major）收集：先临时退回
// 增量模式跑一轮完整收集（这一步顺带把所有死对象清理干净），再重新进入
// 分代模式（这一步把所有存活对象升级为老对象）。对应 fullgen。
func (c *Collector) fullGenerational(r Roots) {
	c.enterIncremental()
	c.enterGenerational(r)
}

// GenStep 是分代模式下的周期调度入口：如果堆增长超过了阈值、且相对上次
// 主收集的基线增长超过 genmajormul%，就做一次完整的主收集；否则做一次
// 年轻代收集，并按 genminormul% 重新设置下次触发的阈值。
// 对应 genstep。
func (c *Collector) GenStep(r Roots) {
	majorBase := c.estimate
	if c.total > c.threshold && c.total > (majorBase/100)*int64(100+c.genMajorMul) {
		c.fullGenerational(r)
		return
	}
	c.youngCollection(r)
	c.threshold = (c.total / 100) * int64(100+c.genMinorMul)
	c.estimate = majorBase
}
