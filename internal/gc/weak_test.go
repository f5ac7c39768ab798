package gc

import "testing"

// TestWeakValueTableClearsDeadEntry 覆盖"弱值表在值不可达时把整条记录清空"
// 这一场景：缓存模式下，键本身可达但值只被这张弱表引用时，一次完整周期
// 应当把值位置清空而不是保留一个悬挂引用。
func TestWeakValueTableClearsDeadEntry(t *testing.T) {
	c := newTestCollector()

	cache := NewTable(c)
	meta := NewTable(c)
	meta.Hash[ObjectValue(modeKey)] = ObjectValue(NewString(c, "v"))
	cache.Metatable = meta
	c.linkRoot(&cache.Header)
	c.linkRoot(&meta.Header)

	key := NewString(c, "session-1")
	val := NewTable(c) // 只被 cache 引用，没有其它根
	c.linkRoot(&val.Header)
	cache.Hash[ObjectValue(key)] = ObjectValue(val)

	r := Roots{Named: []GCObject{cache}}
	c.FullGC(r)

	got, ok := cache.Hash[ObjectValue(key)]
	if ok && got.Kind == KindObject {
		t.Errorf("Expected weak-value entry to be cleared once the value is unreachable, got %+v", got)
	}
}

// TestWeakKeyTableKeepsStrongValueReachable 确认弱键表不会把值本身变成
// 强引用的来源：值如果独立可达，不受弱键清理影响。
func TestWeakKeyTableKeepsStrongValueReachable(t *testing.T) {
	c := newTestCollector()

	weakSet := NewTable(c)
	meta := NewTable(c)
	meta.Hash[ObjectValue(modeKey)] = ObjectValue(NewString(c, "k"))
	weakSet.Metatable = meta
	c.linkRoot(&weakSet.Header)
	c.linkRoot(&meta.Header)

	sharedVal := NewTable(c)
	c.linkRoot(&sharedVal.Header)
	weakKeyObj := NewTable(c)
	c.linkRoot(&weakKeyObj.Header)
	weakSet.Hash[ObjectValue(weakKeyObj)] = ObjectValue(sharedVal)

	// sharedVal 同时被一个独立的命名根持有。
	r := Roots{Named: []GCObject{weakSet, sharedVal}}
	c.FullGC(r)

	if sharedVal.Header.IsDead(c.OtherWhite()) {
		t.Errorf("Expected independently-rooted value to survive even though it sits in a weak-key table")
	}
}
