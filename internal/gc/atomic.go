package gc

// 本文件实现 spec §4.D："原子步"：从标记阶段到清除阶段的单次不可中断迁移。
// 顺序严格遵循 spec 的 11 步列表，每一步都是下一步的前置条件。

// atomicReady 在开始原子步之前检查是否可以运行：正在执行的已编译 trace 会
// 拒绝原子步（调用方应把这当作 MAX_MEM 成本处理，驱动器会自动重试）。
func (c *Collector) atomicReady() bool { return !c.jitBase }

// runAtomic 执行一次完整的原子步骤。r 是本次原子步要重新标记的根快照
// （当前运行线程 + 当前 trace + 其余命名根，原子步第 5 步会用到）。
func (c *Collector) runAtomic(r Roots) {
	// 1. 快照并摘下 grayagain。
	savedGrayAgain := c.grayAgain
	c.grayAgain = nil

	// 2. 进入 Atomic 状态。
	c.state = StateAtomic

	// 3. 重新标记每一个值仍为白色的打开 upvalue（其所属线程可能已经死亡）。
	for _, uv := range c.OpenUpvalues() {
		if uv.Get().Kind == KindObject && uv.Get().Obj != nil && uv.Get().Obj.GCHeader().IsWhite() {
			c.mark(uv)
		}
	}

	// 4. 排空 gray。
	c.propagateAll()

	// 5. 把 weak 移入 gray，标记运行线程/当前 trace/根集合，再次排空。
	//    这第二次根扫描是为了捕获第 3~4 步期间新变为可达的根。
	c.gray = c.weak
	c.weak = nil
	c.markRoots(r)
	c.propagateAll()

	// 6. 把保存的 grayagain 放回 gray 并排空；grayagain 中含有需要重新扫描的
	//    表和线程。
	c.gray = savedGrayAgain
	c.propagateAll()

	// 7. 分离待终结的 userdata。
	udSize := c.separateUData()

	// 8. 标记新进入 mmudata 的对象（终结器必须看到一个存活对象），再排空。
	c.markMMUData()
	udSize += c.propagateAll()

	// 9. 清理弱表。
	c.clearWeakTables()

	// 10. 缩减暂存缓冲区（Go 版本没有专用暂存缓冲，这里收缩弱表/字符串池容量）。
	c.shrinkScratchBuffers()

	// 11. 翻转 currentwhite，重置清除游标与 estimate。
	c.currentWhite = otherWhite(c.currentWhite)
	c.sweepPrev = &c.rootSentinel
	c.sweepStr = 0
	c.estimate = c.total - udSize
}

// separateUData 遍历 userdata 链表与主链表上的外部数据（cdata）：没有终结器
// 的不可达对象直接标记为已终结（之后随普通清除一起回收）；挂有终结器的
// 不可达对象移入 mmudata 环形链表等待终结器执行。返回移动的字节数估计。
// 对应 lj_gc_separateudata（该函数在真实实现里同时处理 userdata 和挂有
// FFI 终结器的 cdata，这里拆成两段分别处理各自的宿主链表）。
func (c *Collector) separateUData() int64 {
	var moved int64

	prev := &c.udataSentinel
	for prev.next != nil {
		h := prev.next
		ud := h.self.(*GCUserdata)
		if !h.IsWhite() || h.IsFinalized() {
			prev = h
			continue
		}
		if !ud.hasGCFinalizer() {
			h.MarkFinalized()
			prev = h
			continue
		}
		prev.next = h.next
		if h == c.udataSur {
			c.udataSur = h.next
		}
		if h == c.udataOld {
			c.udataOld = h.next
		}
		h.MarkFinalized()
		moved += udataSize(ud)
		c.linkMMUData(h)
	}

	prev = &c.rootSentinel
	for prev.next != nil {
		h := prev.next
		if h.typeTag != TypeCData || !h.IsWhite() || h.IsFinalized() {
			prev = h
			continue
		}
		if !h.HasForeignFin() {
			prev = h
			continue
		}
		prev.next = h.next
		h.MarkFinalized()
		moved += headerSize
		c.linkMMUData(h)
	}

	return moved
}

func udataSize(ud *GCUserdata) int64 { return headerSize + 8 }

// linkMMUData 把 h 接到 mmudata 环形链表的末尾（复用 h.next 字段）。
func (c *Collector) linkMMUData(h *Header) {
	if c.mmudata == nil {
		h.next = h
		c.mmudata = h
		return
	}
	root := c.mmudata
	h.next = root.next
	root.next = h
	c.mmudata = h
}

// markMMUData 标记 mmudata 环上的每个对象（可能来自上个周期遗留）。
// 对应 gc_mark_mmudata。
func (c *Collector) markMMUData() {
	root := c.mmudata
	if root == nil {
		return
	}
	u := root
	for {
		u = u.next
		u.MakeWhite(c.currentWhite)
		c.mark(u.self)
		if u == root {
			break
		}
	}
}

// clearWeakTables 实现 spec §4.D 第 9 步：
//   - 数组部分：值即将消亡的槽位清空；
//   - 哈希部分：键或值即将消亡的条目整体删除；
//   - 字符串即便处于弱键/弱值位置也只会被标记，不会被清理（本设计不允许
//     字符串作为弱键/弱值）；
//   - 已终结的 userdata 在"值"位置上也算作即将消亡。
func (c *Collector) clearWeakTables() {
	ow := c.OtherWhite()
	for h := c.weak; h != nil; h = h.gclist {
		t := h.self.(*GCTable)
		weakKey, weakVal := h.IsWeakKey(), h.IsWeakVal()
		if weakVal {
			for i, v := range t.Array {
				if mayClear(v, ow) {
					t.Array[i] = Nil
				}
			}
		}
		for k, v := range t.Hash {
			clearKey := weakKey && mayClear(k, ow)
			clearVal := weakVal && mayClear(v, ow)
			if clearKey || clearVal {
				delete(t.Hash, k)
			}
		}
	}
}

// mayClear 判断一个槽位值是否"即将消亡"：必须是 GC 对象，必须不是字符串
// （字符串永远不允许作为弱引用被清除——本设计规定字符串不得用作弱键/值），
// 且要么是普通的即将翻白对象，要么是已标记 FINALIZED 的 userdata。
func mayClear(v Value, otherWhite MarkBits) bool {
	if v.Kind != KindObject || v.Obj == nil {
		return false
	}
	h := v.Obj.GCHeader()
	if h.typeTag == TypeString {
		return false
	}
	if h.typeTag == TypeUserdata && h.IsFinalized() {
		return true
	}
	return h.IsDead(otherWhite)
}

func (c *Collector) shrinkScratchBuffers() {
	// 没有专用暂存缓冲区；留作扩展点（例如收缩 allocSites map）。
}
