package gc

// Roots 是宿主在进入一次标记周期时提供的根集合快照：主线程、主线程环境、
// 注册表、命名根数组、以及（如果正在编译）当前 trace。对应 spec §4.B。
type Roots struct {
	MainThread *GCThread
	Env        GCObject
	Registry   GCObject
	Named      []GCObject
	Current    *GCTrace
}

// enterPropagate 实现 Pause -> Propagate 的转换（spec §4.B）：
//  1. 清空 gray/grayagain/weak；
//  2. 标记主线程、其环境、注册表、每个命名根；
//  3. 切换到 Propagate。
func (c *Collector) enterPropagate(r Roots) {
	c.gray = nil
	c.grayAgain = nil
	c.weak = nil
	c.stats = CycleStats{Kind: c.kindString()}

	c.markRoots(r)

	c.state = StatePropagate
}

// markRoots 标记一次根快照中的所有根对象（原子步第 5 步的"第二次根扫描"
// 也复用这个函数，因为两处枚举的根集合完全相同）。
func (c *Collector) markRoots(r Roots) {
	if r.MainThread != nil {
		c.mark(r.MainThread)
	}
	if r.Env != nil {
		c.mark(r.Env)
	}
	if r.Registry != nil {
		c.mark(r.Registry)
	}
	for _, o := range r.Named {
		if o != nil {
			c.mark(o)
		}
	}
	if r.Current != nil {
		c.mark(r.Current)
	}
}
