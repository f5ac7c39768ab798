package gc

// 本文件实现 spec §4.E："清除阶段"：字符串哈希链清除、主链表/userdata 链表的
// 有限步清除、字符串表收缩策略。

// stepSweepString 清除字符串哈希表的下一条链，返回释放的字节数。
// 清除到最后一条链之后转入 StateSweep。对应 GCSsweepstring。
func (c *Collector) stepSweepString() int64 {
	freed := c.sweepStringChain(c.sweepStr)
	c.sweepStr++
	if c.sweepStr > int(c.strMask) {
		c.state = StateSweep
	}
	return freed
}

func (c *Collector) sweepStringChain(idx int) int64 {
	if idx >= len(c.strHash) {
		return 0
	}
	chain := c.strHash[idx]
	ow := c.OtherWhite()
	kept := chain[:0]
	var freed int64
	for _, s := range chain {
		if !s.Header.IsDead(ow) {
			s.Header.MakeWhite(c.currentWhite)
			kept = append(kept, s)
		} else {
			sz := stringSize(s)
			freed += sz
			c.total -= sz
			c.strNum--
		}
	}
	c.strHash[idx] = kept
	return freed
}

func stringSize(s *GCString) int64 { return headerSize + int64(len(s.Data)) }

// stepSweep 在主链表与 userdata 链表上各清除最多 limit 个对象，返回释放的
// 字节数。清除完毕（两条链都走到尽头）后，视 mmudata 是否非空决定进入
// StateFinalize 还是直接回到 StatePause；顺带触发字符串表收缩检查。
// 对应 GCSsweep。
func (c *Collector) stepSweep(limit int) int64 {
	var freed int64
	n := 0
	for n < limit && c.sweepPrev.next != nil {
		freed += c.sweepOneFrom(&c.sweepPrev)
		n++
	}
	if c.sweepPrev.next == nil {
		// 主链表走完了，继续走 userdata 链表，共享同一步预算。
		if c.udataSweepPrev == nil {
			c.udataSweepPrev = &c.udataSentinel
		}
		for n < limit && c.udataSweepPrev.next != nil {
			freed += c.sweepOneFrom(&c.udataSweepPrev)
			n++
		}
		if c.udataSweepPrev.next == nil {
			c.finishSweep()
		}
	}
	return freed
}

// sweepOneFrom 检查 (*prev).next：存活则翻白并前移游标；死亡则从链表摘下
// 并释放，游标留在原地（因为摘下后 (*prev).next 已经是下一个候选）。
func (c *Collector) sweepOneFrom(prev **Header) int64 {
	h := (*prev).next
	ow := c.OtherWhite()
	if !h.IsDead(ow) {
		h.MakeWhite(c.currentWhite)
		*prev = h
		return 0
	}
	(*prev).next = h.next
	c.adjustAnchors(h)
	sz := c.freeObject(h)
	return sz
}

// adjustAnchors 在从主链表/ userdata 链表摘下一个节点时，修正任何恰好指向
// 该节点的锚点（分代模式下的 survival/old/reallyold 三元组，以及清除游标
// 本身），让它们改为指向被摘下节点原来的后继。对应 gc_sweep 对 g->gc.root
// 锚点的调整，在本实现中推广到全部锚点。
func (c *Collector) adjustAnchors(h *Header) {
	if c.survival == h {
		c.survival = h.next
	}
	if c.old == h {
		c.old = h.next
	}
	if c.reallyOld == h {
		c.reallyOld = h.next
	}
	if c.udataSur == h {
		c.udataSur = h.next
	}
	if c.udataOld == h {
		c.udataOld = h.next
	}
	if c.udataRold == h {
		c.udataRold = h.next
	}
}

// finishSweep 在两条链都清除完毕后运行：决定下一个状态，必要时收缩字符串表。
func (c *Collector) finishSweep() {
	c.maybeShrinkStringTable()
	c.udataSweepPrev = nil
	if c.mmudata != nil {
		c.state = StateFinalize
	} else {
		c.state = StatePause
		c.debt = 0
	}
}

// maybeShrinkStringTable 在存活字符串数量降到容量的 1/4 以下、且容量仍大于
// 下限时，把哈希桶数量减半并重新哈希所有存活字符串。对应 lj_str_resize
// 在清除末尾被触发的路径。
func (c *Collector) maybeShrinkStringTable() {
	if int64(c.strNum) > int64(c.strMask>>2) || c.strMask <= minStrMask {
		return
	}
	newMask := c.strMask >> 1
	if newMask < 1 {
		newMask = 1
	}
	newHash := make([][]*GCString, newMask+1)
	for _, chain := range c.strHash {
		for _, s := range chain {
			idx := strHashCode(s.Data) & newMask
			newHash[idx] = append(newHash[idx], s)
		}
	}
	c.strHash = newHash
	c.strMask = newMask
}

// strHashCode 是本包自用的字符串哈希函数（FNV-1a），只用于内部的分链定位，
// 不对外暴露，也不要求和宿主解释器的字符串驻留哈希一致。
func strHashCode(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// freeObject 将对象从收集器的簿记结构中彻底移除（终结器表、分配点追踪表），
// 并返回它占用的估计字节数，供调用方从 total 中扣除。对象本身交还 Go 的
// 垃圾回收器处理，因为本收集器管理的是"可达性"而不是内存布局。
func (c *Collector) freeObject(h *Header) int64 {
	sz := objectSize(h)
	c.total -= sz
	if h.typeTag == TypeUserdata || h.typeTag == TypeCData {
		delete(c.finalizers, h.self)
	}
	if c.leakDetect {
		delete(c.allocSites, h.self)
	}
	return sz
}

func objectSize(h *Header) int64 {
	switch o := h.self.(type) {
	case *GCString:
		return stringSize(o)
	case *GCTable:
		return tableSize(o)
	case *GCFunc:
		return funcSize(o)
	case *GCProto:
		return protoSize(o)
	case *GCThread:
		return threadSize(o)
	case *GCTrace:
		return traceSize(o)
	case *GCUpvalue:
		return headerSize + valueSize
	case *GCUserdata:
		return headerSize + 8
	case *GCCData:
		return headerSize
	default:
		return headerSize
	}
}
