package gc

// 本文件实现 spec §4.C："标记/传播引擎"：gray/grayagain 工作队列、逐类型
// 子对象枚举、弱表延迟处理。

// ---- 工作队列的侵入式链表操作 -------------------------------------------------

func pushList(list **Header, h *Header) {
	h.gclist = *list
	*list = h
}

func popList(list **Header) *Header {
	h := *list
	if h != nil {
		*list = h.gclist
		h.gclist = nil
	}
	return h
}

func (c *Collector) pushGray(h *Header)      { pushList(&c.gray, h) }
func (c *Collector) pushGrayAgain(h *Header) { pushList(&c.grayAgain, h) }
func (c *Collector) pushWeak(h *Header)      { pushList(&c.weak, h) }

// mark 是 spec §4.C 的 mark(o)：白色对象才处理，否则是 no-op。
func (c *Collector) mark(o GCObject) {
	if o == nil {
		return
	}
	h := o.GCHeader()
	if !h.IsWhite() {
		return
	}
	h.WhiteToGray()

	switch h.typeTag {
	case TypeString, TypeCData:
		// 没有出向引用（cdata 的终结器登记在收集器的终结器表里，不是子对象）。
		return
	case TypeUserdata:
		ud := o.(*GCUserdata)
		h.GrayToBlack() // userdata 从不进入灰色工作队列
		if ud.Metatable != nil {
			c.mark(ud.Metatable)
		}
		if ud.Env != nil {
			c.mark(ud.Env)
		}
	case TypeUpvalue:
		uv := o.(*GCUpvalue)
		c.markValue(uv.Get())
		if uv.Closed {
			h.GrayToBlack() // 已关闭的 upvalue 从不进入灰色工作队列
		}
		// 打开状态下保持"灰"（不入队，原子步会通过全局 uvhead 重新扫描）。
	default:
		// table / func / thread / proto / trace：入灰色工作队列，稍后传播。
		c.pushGray(h)
	}
}

func (c *Collector) markValue(v Value) {
	if v.Kind == KindObject && v.Obj != nil {
		c.mark(v.Obj)
	}
}

// markString 是 gc_mark 对字符串的特化路径，供遍历原型 chunkname 等处调用。
func (c *Collector) markString(s *GCString) {
	if s == nil {
		return
	}
	c.mark(s)
}

// markTrace 标记一个 trace（供遍历原型 / 其它 trace 的 link 字段调用）。
func (c *Collector) markTrace(t *GCTrace) {
	if t == nil {
		return
	}
	c.mark(t)
}

// propagateOne 弹出灰色队列头部，染黑并枚举其子对象，返回估计释放的字节数。
// 对应 spec §4.C 的 propagate_one()（原版的 propagatemark）。
func (c *Collector) propagateOne() int64 {
	h := popList(&c.gray)
	if h == nil {
		return 0
	}
	h.GrayToBlack()

	switch h.typeTag {
	case TypeTable:
		t := h.self.(*GCTable)
		weak := c.traverseTable(t)
		if weak {
			h.BlackToGray() // 弱表保持灰色，挂在 weak 队列上等待原子步清理
		}
		return tableSize(t)
	case TypeFunc:
		fn := h.self.(*GCFunc)
		c.traverseFunc(fn)
		return funcSize(fn)
	case TypeProto:
		pt := h.self.(*GCProto)
		c.traverseProto(pt)
		return protoSize(pt)
	case TypeThread:
		th := h.self.(*GCThread)
		c.pushGrayAgain(h)
		h.BlackToGray() // 线程从不保持黑色：栈在屏障之外持续变化
		c.traverseThread(th)
		return threadSize(th)
	case TypeTrace:
		tr := h.self.(*GCTrace)
		c.traverseTrace(tr)
		return traceSize(tr)
	default:
		return 0
	}
}

// propagateAll 排空灰色队列，返回总估计字节数。
func (c *Collector) propagateAll() int64 {
	var total int64
	for c.gray != nil {
		total += c.propagateOne()
	}
	return total
}

// traverseTable 标记表的元表与（非弱的）数组/哈希部分；返回是否为弱表。
// 对应 lj_gc.c 的 gc_traverse_tab。
func (c *Collector) traverseTable(t *GCTable) bool {
	if t.Metatable != nil {
		c.mark(t.Metatable)
	}
	weakKey, weakVal := t.WeakMode()
	if weakKey || weakVal {
		t.SetWeakKey(weakKey)
		t.SetWeakVal(weakVal)
		c.pushWeak(&t.Header)
		if weakKey && weakVal {
			return true // 键值皆弱：无需标记任何子对象
		}
	}
	if !weakVal {
		for _, v := range t.Array {
			c.markValue(v)
		}
	}
	for k, v := range t.Hash {
		if !weakKey {
			c.markValue(k)
		}
		if !weakVal {
			c.markValue(v)
		}
	}
	if !weakKey && !weakVal && c.kind == KindGenerational {
		// 分代模式下，完全非弱的表重新入队 grayagain，下次原子步补扫写屏障
		// 可能遗漏的写入（见 spec §4.C 分代备注）。
		c.pushGrayAgain(&t.Header)
		t.Header.BlackToGray()
	}
	return weakKey || weakVal
}

func (c *Collector) traverseFunc(fn *GCFunc) {
	if fn.Env != nil {
		c.mark(fn.Env)
	}
	if !fn.Native {
		if fn.Proto != nil {
			c.mark(fn.Proto)
		}
		for _, uv := range fn.Upvalues {
			if uv != nil {
				c.mark(uv)
			}
		}
	} else {
		for _, v := range fn.NativeUpvals {
			c.markValue(v)
		}
	}
}

func (c *Collector) traverseProto(pt *GCProto) {
	c.markString(pt.ChunkName)
	for _, v := range pt.Consts {
		c.markValue(v)
	}
	if pt.Trace != nil {
		c.markTrace(pt.Trace)
	}
}

// traverseThread 标记活跃栈槽；在 Atomic 阶段把 top..cap 之间的陈旧槽位清空。
func (c *Collector) traverseThread(th *GCThread) {
	for i := 0; i < th.Top; i++ {
		c.markValue(th.Stack[i])
	}
	if c.state == StateAtomic {
		for i := th.Top; i < len(th.Stack); i++ {
			th.Stack[i] = Nil
		}
	}
	if th.Env != nil {
		c.mark(th.Env)
	}
}

func (c *Collector) traverseTrace(tr *GCTrace) {
	for _, o := range tr.KGC {
		c.mark(o)
	}
	if tr.Link != nil {
		c.markTrace(tr.Link)
	}
	if tr.NextRoot != nil {
		c.markTrace(tr.NextRoot)
	}
	if tr.NextSide != nil {
		c.markTrace(tr.NextSide)
	}
	if tr.StartProto != nil {
		c.mark(tr.StartProto)
	}
}

// ---- 字节估算（供步进器记账使用，近似即可，精确记账发生在分配器层） -----------

const (
	headerSize = 16
	valueSize  = 16
	nodeSize   = 32
)

func tableSize(t *GCTable) int64 {
	return headerSize + valueSize*int64(len(t.Array)) + nodeSize*int64(len(t.Hash))
}

func funcSize(fn *GCFunc) int64 {
	if fn.Native {
		return headerSize + valueSize*int64(len(fn.NativeUpvals))
	}
	return headerSize + 8*int64(len(fn.Upvalues))
}

func protoSize(pt *GCProto) int64 {
	return headerSize + valueSize*int64(len(pt.Consts))
}

func threadSize(th *GCThread) int64 {
	return headerSize + valueSize*int64(len(th.Stack))
}

func traceSize(tr *GCTrace) int64 {
	return headerSize + 8*int64(len(tr.KGC))
}
