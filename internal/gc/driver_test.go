package gc

import "testing"

// TestAtomicStepDefersWhileTraceExecuting 验证正在执行已编译 trace 期间，
// 原子步会被推迟而不是强行运行。
func TestAtomicStepDefersWhileTraceExecuting(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}

	c.enterPropagate(r)
	c.propagateAll()
	if c.State() != StateAtomic {
		t.Fatalf("Expected to reach Atomic state, got %v", c.State())
	}

	c.SetJITBase(true)
	cost := c.oneStep(r)
	if cost != int64(maxMem) {
		t.Errorf("Expected atomic step to report maxMem cost while a trace is executing, got %d", cost)
	}
	if c.State() != StateAtomic {
		t.Errorf("Expected state to remain Atomic while deferred, got %v", c.State())
	}

	c.SetJITBase(false)
	cost = c.oneStep(r)
	if cost == int64(maxMem) {
		t.Errorf("Expected atomic step to run once the trace finished executing")
	}
	if c.State() != StateSweepString {
		t.Errorf("Expected atomic step to advance to SweepString, got %v", c.State())
	}
}

// TestStepRespectsDisabledCollector 验证 SetEnabled(false) 之后 Step 完全
// 不推进状态机。
func TestStepRespectsDisabledCollector(t *testing.T) {
	c := newTestCollector()
	c.SetEnabled(false)
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}

	c.Step(r, StepSize)
	if c.State() != StatePause {
		t.Errorf("Expected disabled collector to stay in Pause, got %v", c.State())
	}
}

// TestFreeAllClearsEverything 验证关闭时的快捷路径会释放全部簿记结构并
// 对挂有终结器的对象运行一次终结器，但保留 super-fixed 对象（例如常驻的
// 主线程）不被回收。
func TestFreeAllClearsEverything(t *testing.T) {
	c := newTestCollector()
	finalizerName := NewString(c, "finalizer")

	meta := NewTable(c)
	meta.Hash[ObjectValue(gcKey)] = ObjectValue(finalizerName)
	c.linkRoot(&meta.Header)
	_ = c.Realloc(0, tableSize(meta))

	ud := &GCUserdata{Metatable: meta}
	ud.Header = newHeader(ud, TypeUserdata, c.currentWhite)
	c.NewUserdata(ud, "")
	_ = c.Realloc(0, udataSize(ud))

	ran := false
	c.RegisterFinalizer(ud, func(o GCObject) error {
		ran = true
		return nil
	})

	mainThread := NewThread(c)
	mainThread.Header.SetSuperFixed()
	c.linkRoot(&mainThread.Header)
	_ = c.Realloc(0, threadSize(mainThread))

	if err := c.FreeAll(); err != nil {
		t.Errorf("Expected FreeAll to succeed, got %v", err)
	}
	if !ran {
		t.Errorf("Expected FreeAll to run pending finalizers before freeing everything")
	}

	found := false
	for h := c.Root(); h != nil; h = h.next {
		if h.Self() == meta {
			t.Errorf("Expected FreeAll to clear non-super-fixed objects from the root list")
		}
		if h.Self() == mainThread {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected FreeAll to keep the super-fixed main thread linked")
	}
	if c.total != threadSize(mainThread) {
		t.Errorf("Expected total to equal the byte count of remaining super-fixed objects, got %d want %d", c.total, threadSize(mainThread))
	}
}
