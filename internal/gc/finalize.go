package gc

import (
	"fmt"

	"go.uber.org/multierr"
)

// 本文件实现 spec §4.F："终结"：受保护调用边界、mmudata 环的逐个弹出、
// 以及关闭时的"终结全部 + 释放全部"快捷路径。

// RegisterFinalizer 为一个 userdata/cdata 对象登记终结器，并在 cdata 的场景下
// 设置 ForeignHasFin 标记（userdata 的"是否有终结器"由元表 __gc 动态判定，
// 不需要这个标记位，见 object.go 的 hasGCFinalizer）。
func (c *Collector) RegisterFinalizer(o GCObject, fn Finalizer) {
	c.finalizers[o] = fn
	if h := o.GCHeader(); h.typeTag == TypeCData {
		h.SetForeignHasFin(true)
	}
}

// finalizeOne 从 mmudata 环上弹出一个对象，运行其终结器（受 recover 保护），
// 并把对象重新链回主链表——下一轮清除会再次判定它的可达性：如果终结器让它
// 复活（例如把 self 存进某个可达的表），对象存活；否则照常回收。
// 对应 lj_gc_finalize 每次处理一个对象的逻辑。
func (c *Collector) finalizeOne() int64 {
	root := c.mmudata
	if root == nil {
		return 0
	}
	h := root.next
	if h == root {
		c.mmudata = nil
	} else {
		root.next = h.next
	}
	h.next = nil
	if h.typeTag == TypeUserdata {
		h.next = c.udataSentinel.next
		c.udataSentinel.next = h
	} else {
		c.linkRoot(h)
	}

	cost := int64(FinalizeCost)
	if fn, ok := c.finalizers[h.self]; ok {
		if err := c.runProtected(h.self, fn); err != nil {
			c.pendingErr = multierr.Append(c.pendingErr, err)
		}
		delete(c.finalizers, h.self)
	}
	if c.estimate > int64(FinalizeCost) {
		c.estimate -= int64(FinalizeCost)
	}
	return cost
}

// runProtected 在隔离边界内调用终结器：它可能是宿主脚本里的任意代码，
// 一次 panic 不应该掀翻整个收集周期。
func (c *Collector) runProtected(o GCObject, fn Finalizer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("finalizer panic on %T: %v", o, r)
		}
	}()
	return fn(o)
}

// PendingErrors 返回自上次 TakeErrors 以来累积的全部终结器错误（multierr
// 聚合），不清空内部状态。
func (c *Collector) PendingErrors() error { return c.pendingErr }

// TakeErrors 返回并清空累积的终结器错误。
func (c *Collector) TakeErrors() error {
	err := c.pendingErr
	c.pendingErr = nil
	return err
}

// FinalizeAllUserdata 无条件对主链表与 userdata 链表上、挂有 __gc 的每个
// userdata 运行一次终结器（不判定可达性），用于运行时显式关闭。
// 对应 lj_gc_freeall 在真正释放之前对所有 userdata 调用 __gc 的那一遍。
func (c *Collector) FinalizeAllUserdata() error {
	for h := c.udataSentinel.next; h != nil; h = h.next {
		ud, ok := h.self.(*GCUserdata)
		if !ok || h.IsFinalized() || !ud.hasGCFinalizer() {
			continue
		}
		if fn, ok := c.finalizers[h.self]; ok {
			if err := c.runProtected(h.self, fn); err != nil {
				c.pendingErr = multierr.Append(c.pendingErr, err)
			}
		}
		h.MarkFinalized()
	}
	return c.TakeErrors()
}

// FinalizeAllForeign 对所有带 ForeignHasFin 标记的 cdata 运行一次终结器。
func (c *Collector) FinalizeAllForeign() error {
	for h := c.rootSentinel.next; h != nil; h = h.next {
		if h.typeTag != TypeCData || !h.HasForeignFin() || h.IsFinalized() {
			continue
		}
		if fn, ok := c.finalizers[h.self]; ok {
			if err := c.runProtected(h.self, fn); err != nil {
				c.pendingErr = multierr.Append(c.pendingErr, err)
			}
		}
		h.MarkFinalized()
	}
	return c.TakeErrors()
}

// freeAllChain 释放链表上除 super-fixed 节点（主线程等常驻对象）之外的
// 全部节点，super-fixed 节点原地保留。对应 lj_gc_freeall 把 currentwhite
// 临时改成 WHITES|SFIXED 再整链 gc_fullsweep 的效果。
func (c *Collector) freeAllChain(sentinel *Header) {
	prev := sentinel
	for prev.next != nil {
		h := prev.next
		if h.IsSuperFixed() {
			prev = h
			continue
		}
		prev.next = h.next
		c.freeObject(h)
	}
}

// FreeAll 是运行时关闭时的快捷路径：先对所有待终结对象运行终结器（忽略
// 可达性），再释放全部对象——但保留 super-fixed 对象（例如主线程）而不是
// 无差别清空。对应 lj_gc_freeall。
func (c *Collector) FreeAll() error {
	_ = c.FinalizeAllUserdata()
	_ = c.FinalizeAllForeign()

	c.freeAllChain(&c.rootSentinel)
	c.freeAllChain(&c.udataSentinel)
	c.mmudata = nil
	c.gray, c.grayAgain, c.weak = nil, nil, nil
	for i, chain := range c.strHash {
		for _, s := range chain {
			c.freeObject(&s.Header)
		}
		c.strHash[i] = nil
	}
	c.strNum = 0
	c.finalizers = make(map[GCObject]Finalizer)
	c.state = StatePause

	return c.TakeErrors()
}
