package gc

import "testing"

// TestFinalizerRunsOnUnreachableUserdata 验证挂有 __gc 的不可达 userdata
// 会在下一次完整周期中被分离进终结队列并执行一次终结器。
func TestFinalizerRunsOnUnreachableUserdata(t *testing.T) {
	c := newTestCollector()

	meta := NewTable(c)
	meta.Hash[ObjectValue(gcKey)] = ObjectValue(NewString(c, "finalizer"))
	c.linkRoot(&meta.Header)

	ud := &GCUserdata{Metatable: meta}
	ud.Header = newHeader(ud, TypeUserdata, c.currentWhite)
	c.NewUserdata(ud, "")

	ran := false
	c.RegisterFinalizer(ud, func(o GCObject) error {
		ran = true
		return nil
	})

	c.FullGC(Roots{})
	for c.mmudata != nil || c.state == StateFinalize {
		c.oneStep(Roots{})
	}

	if !ran {
		t.Errorf("Expected finalizer to run for unreachable userdata with __gc")
	}
}

// TestFinalizerResurrectionKeepsObjectAlive 验证终结器如果把 self 存进一个
// 可达的表，对象在下一轮清除中应当存活而不是被回收。
func TestFinalizerResurrectionKeepsObjectAlive(t *testing.T) {
	c := newTestCollector()

	survivors := NewTable(c)
	c.linkRoot(&survivors.Header)

	meta := NewTable(c)
	meta.Hash[ObjectValue(gcKey)] = ObjectValue(NewString(c, "finalizer"))
	c.linkRoot(&meta.Header)

	ud := &GCUserdata{Metatable: meta}
	ud.Header = newHeader(ud, TypeUserdata, c.currentWhite)
	c.NewUserdata(ud, "")

	c.RegisterFinalizer(ud, func(o GCObject) error {
		survivors.Hash[ObjectValue(NewString(c, "resurrected"))] = ObjectValue(o)
		return nil
	})

	r := Roots{Named: []GCObject{survivors}}
	c.FullGC(r)
	for c.mmudata != nil || c.state == StateFinalize {
		c.oneStep(r)
	}

	// 终结器已经运行过；再跑一轮完整收集，resurrect 之后 ud 应该存活。
	c.FullGC(r)

	if ud.Header.IsDead(c.OtherWhite()) {
		t.Errorf("Expected resurrected userdata to survive the next cycle")
	}
}

// TestFinalizerPanicIsContained 验证一个终结器 panic 不会掀翻整个收集周期，
// 而是被 recover 转换成累积错误。
func TestFinalizerPanicIsContained(t *testing.T) {
	c := newTestCollector()

	meta := NewTable(c)
	meta.Hash[ObjectValue(gcKey)] = ObjectValue(NewString(c, "finalizer"))
	c.linkRoot(&meta.Header)

	ud := &GCUserdata{Metatable: meta}
	ud.Header = newHeader(ud, TypeUserdata, c.currentWhite)
	c.NewUserdata(ud, "")

	c.RegisterFinalizer(ud, func(o GCObject) error {
		panic("boom")
	})

	c.FullGC(Roots{})
	for c.mmudata != nil || c.state == StateFinalize {
		c.oneStep(Roots{})
	}

	if err := c.TakeErrors(); err == nil {
		t.Errorf("Expected a contained finalizer panic to surface as an accumulated error")
	}
}
