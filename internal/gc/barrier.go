package gc

// 本文件实现 spec §4.I："写屏障"：维护"黑色对象不得直接引用白色对象"这一
// 传播期不变式。四个屏障对应四种不同的存储位置：普通字段（向前）、表
// 字段（向后）、upvalue 关闭、trace 保存。

// BarrierForward 在把白色对象 v 存进黑色对象 o 的非表字段时调用（upvalue、
// userdata 的 env/metatable 等）。传播/原子阶段直接把 v 标记变灰，推进
// 标记前沿；增量模式下其余阶段，o 已经是黑色但关系式仍需维持，于是反过来
// 把 o 退回白色，让它重新进入下一轮的灰色队列。对应 lj_gc_barrierf。
func (c *Collector) BarrierForward(o, v GCObject) {
	oh, vh := o.GCHeader(), v.GCHeader()
	if !oh.IsBlack() || !vh.IsWhite() {
		return
	}
	if c.state == StatePropagate || c.state == StateAtomic {
		c.mark(v)
		if c.kind == KindGenerational && oh.Old() && !vh.Old() {
			vh.SetAge(AgeOld0)
		}
	} else {
		oh.MakeWhite(c.currentWhite)
	}
}

// BarrierBack 在把白色值存进黑色表 t 时调用：把 t 退回灰色并挂到 grayagain，
// 下次原子步会重新扫描它的全部内容（而不是只跟踪这一次写入）。
// 分代模式下，如果 t 是老对象，还要把年龄标记为 TOUCHED1，年轻代清除会
// 据此判断这是一张"本周期被写入过的老表"，年轻代收集必须重新扫描它。
// 对应 lj_gc_barrierback。
func (c *Collector) BarrierBack(t *GCTable) {
	h := &t.Header
	if !h.IsBlack() {
		return
	}
	if c.kind == KindGenerational && h.Old() {
		if h.GetAge() == AgeTouched1 {
			return // 已经在 grayagain 上，避免重复链接
		}
		h.SetAge(AgeTouched1)
	}
	h.BlackToGray()
	c.pushGrayAgain(h)
}

// BarrierUpvalue 在给一个已关闭的 upvalue 赋新值时调用（uv.Value = ...）。
// 传播/原子阶段直接标记新值；其余阶段把 upvalue 本身退回当前白色，留给
// 清除阶段处理，因为这时候维持前向不变式已经没有意义。
// 对应 lj_gc_barrieruv。
func (c *Collector) BarrierUpvalue(uv *GCUpvalue) {
	v := uv.Get()
	if v.Kind != KindObject || v.Obj == nil {
		return
	}
	if c.state == StatePropagate || c.state == StateAtomic {
		c.mark(v.Obj)
	} else {
		uv.Header.MakeWhite(c.currentWhite)
	}
}

// CloseUpvalue 关闭一个打开的 upvalue：把栈槽的值复制进 upvalue 自身，
// 从全局打开链表摘下并接入主链表，同时维持屏障不变式——关闭后的 upvalue
// 绝不允许是灰色。对应 lj_gc_closeuv。
func (c *Collector) CloseUpvalue(uv *GCUpvalue) {
	v := *uv.Stack
	uv.Value = v
	uv.Closed = true
	c.UnlinkOpenUpvalue(uv)
	c.linkRoot(&uv.Header)

	h := &uv.Header
	if h.IsGray() {
		if c.state == StatePropagate || c.state == StateAtomic {
			h.GrayToBlack()
			if v.Kind == KindObject && v.Obj != nil && v.Obj.GCHeader().IsWhite() {
				c.BarrierForward(uv, v.Obj)
			}
		} else {
			h.MakeWhite(c.currentWhite)
		}
	}
}

// BarrierTrace 在把一个 trace 保存进（例如）原型的 trace 链接字段时调用。
// 传播/原子阶段直接标记该 trace；分代模式下，如果它挂接的起始原型是老对象
// 而 trace 本身还年轻，把 trace 提升为 OLD0（trace 的生命周期通常绑定着
// 它的起始原型，提前提升避免下一次年轻代收集就把它当垃圾清除写屏障记录）。
// 对应 lj_gc_barriertrace。
func (c *Collector) BarrierTrace(tr *GCTrace) {
	if c.state != StatePropagate && c.state != StateAtomic {
		return
	}
	c.markTrace(tr)
	if tr.StartProto != nil {
		ph := tr.StartProto.GCHeader()
		th := tr.Header
		if c.kind == KindGenerational && ph.Old() && !th.Old() {
			tr.Header.SetAge(AgeOld0)
		}
	}
}
