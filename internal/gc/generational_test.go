package gc

import "testing"

// TestChangeModeToGenerationalAgesSurvivors 验证切换到分代模式后，所有当时
// 存活的对象都被直接标记为 OLD 年龄。
func TestChangeModeToGenerationalAgesSurvivors(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)

	r := Roots{Named: []GCObject{root}}
	c.ChangeMode(KindGenerational, r)

	if c.Kind() != KindGenerational {
		t.Fatalf("Expected kind to be generational after ChangeMode, got %v", c.Kind())
	}
	if root.Header.GetAge() != AgeOld {
		t.Errorf("Expected survivor to be aged to OLD on entering generational mode, got %v", root.Header.GetAge())
	}
	// entergen 按 genminormul（而不是 genmajormul）重新估算 threshold：
	// 下一次触发的应当是一次年轻代收集，不是主收集。
	wantThreshold := (c.Total() / 100) * int64(100+c.genMinorMul)
	if c.Threshold() != wantThreshold {
		t.Errorf("Expected threshold to be seeded from genMinorMul, got %d want %d", c.Threshold(), wantThreshold)
	}
}

// TestYoungCollectionFreesDeadYoungObject 验证年轻代收集能回收一个刚分配、
// 从未被任何根引用过的对象。
func TestYoungCollectionFreesDeadYoungObject(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}
	c.ChangeMode(KindGenerational, r)

	garbage := NewTable(c)
	c.linkRoot(&garbage.Header)

	c.youngCollection(r)

	for h := c.Root(); h != nil; h = h.next {
		if h.Self() == garbage {
			t.Errorf("Expected dead young object to be freed by young collection")
		}
	}
}

// TestBarrierBackMarksOldTableTouched 验证对一张老表执行后向屏障时，
// 分代模式下年龄被标记为 TOUCHED1，供下一次年轻代收集重新扫描。
func TestBarrierBackMarksOldTableTouched(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}
	c.ChangeMode(KindGenerational, r)

	// entergen 结束后状态机停在 Propagate；把它推黑，模拟"已经扫描过"。
	root.Header.GrayToBlack()

	c.BarrierBack(root)

	if root.Header.GetAge() != AgeTouched1 {
		t.Errorf("Expected old table touched by back barrier to be aged TOUCHED1, got %v", root.Header.GetAge())
	}
	if !root.Header.IsGray() {
		t.Errorf("Expected back barrier to turn the table gray again")
	}
}

// TestGenStepTriggersMajorCollectionWhenGrowthExceedsMajorMul 验证当堆增长
// 超过 genmajormul 阈值时，genstep 会触发一次完整的主收集而不是年轻代收集。
func TestGenStepTriggersMajorCollectionWhenGrowthExceedsMajorMul(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}
	c.ChangeMode(KindGenerational, r)

	c.estimate = 100
	c.total = 1000 // 远超过 (100/100)*(100+genMajorMul)
	c.threshold = 500

	c.GenStep(r)

	if c.reallyOld != c.old || c.old != c.survival {
		t.Errorf("Expected a major collection to reset all three age anchors to the same point")
	}
}
