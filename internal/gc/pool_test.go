package gc

import "testing"

// TestArrayPoolReusesBuffer 验证归还后的背衬数组会被下一次 Get 复用而不是
// 重新分配。
func TestArrayPoolReusesBuffer(t *testing.T) {
	c := newTestCollector()
	arr := c.GetArray()
	arr = append(arr, NumberValue(1))
	c.ReturnArray(arr)

	_, _, size := c.arrayPool.Stats()
	if size == 0 {
		t.Errorf("Expected returned array to be retained in the pool")
	}

	reused := c.GetArray()
	if len(reused) != 0 {
		t.Errorf("Expected reused array to be reset to zero length, got %d", len(reused))
	}
}

// TestArgsPoolBucketsBySize 验证参数池按请求大小落入正确档位，并在归还后
// 清空内容避免悬挂引用。
func TestArgsPoolBucketsBySize(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	args := c.GetArgs(3)
	if len(args) != 3 {
		t.Fatalf("Expected args slice of length 3, got %d", len(args))
	}
	args[0] = ObjectValue(root)
	c.ReturnArgs(args)

	again := c.GetArgs(3)
	for i, v := range again {
		if v.Kind != KindNil {
			t.Errorf("Expected returned args slot %d to be cleared, got %+v", i, v)
		}
	}
}

// TestMultiThreadCollectorRunsFullGCWithoutWorkers 验证没有注册 RootSource
// 时（即没有其它 worker 参与），STW 包装器仍然能正常跑完一次完整收集。
func TestMultiThreadCollectorRunsFullGCWithoutWorkers(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)

	mt := NewMultiThreadCollector(c, nil)
	mt.FullGCWithSTW()

	if mt.State() != StatePause {
		t.Errorf("Expected collector to return to Pause after STW full GC, got %v", mt.State())
	}
	if mt.IsSTWActive() {
		t.Errorf("Expected STW to be released after FullGCWithSTW returns")
	}
}
