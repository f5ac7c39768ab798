package gc

import "fmt"

// 本文件实现 spec §4.J："分配记账"：字节级别的 total 记账、新对象注册、
// 内存不足信号。

// ErrOutOfMemory 在记账总字节数超出可表示范围时返回。宿主解释器应将其
// 映射为脚本层面的内存错误（例如抛出一个运行时异常），而不是让进程崩溃。
type ErrOutOfMemory struct {
	Requested int64
	Total     int64
}

func (e *ErrOutOfMemory) Error() string {
	return fmt.Sprintf("gc: out of memory: requested %d bytes, total already %d", e.Requested, e.Total)
}

// Realloc 记录一次大小变化为 newSize-oldSize 的重新分配（newSize==0 表示
// 释放，oldSize==0 表示全新分配）。记账溢出时返回 ErrOutOfMemory 而不调整
// total，调用方应当视作分配失败。对应 lj_mem_realloc 的字节记账部分——
// 本包不管理真实内存布局，只负责维护 total/debt 供步进器使用。
func (c *Collector) Realloc(oldSize, newSize int64) error {
	delta := newSize - oldSize
	if delta > 0 && c.total+delta < c.total {
		return &ErrOutOfMemory{Requested: delta, Total: c.total}
	}
	c.total += delta
	c.debt += delta
	return nil
}

// NewGCObject 把一个刚构造好的对象登记进收集器：染成当前白色、年龄归零、
// 接入主链表头部，并按需记录分配点（调试模式下用于泄漏定位）。
// 调用方负责对非字符串/非 userdata 对象使用这个通用路径；GCString 通过
// 字符串驻留单独接入 strHash（见本文件 InternString），GCUserdata 接入
// udataSentinel（见 NewUserdata）。
func (c *Collector) NewGCObject(o GCObject, site string) {
	h := o.GCHeader()
	h.NewWhite(c.currentWhite)
	h.SetAge(AgeNew)
	c.linkRoot(h)
	if c.leakDetect && site != "" {
		c.RecordAllocationSite(o, site)
	}
}

// NewUserdata 登记一个新的 userdata 对象，接入独立的 udataSentinel 链表。
func (c *Collector) NewUserdata(ud *GCUserdata, site string) {
	h := &ud.Header
	h.NewWhite(c.currentWhite)
	h.SetAge(AgeNew)
	h.next = c.udataSentinel.next
	c.udataSentinel.next = h
	if c.leakDetect && site != "" {
		c.RecordAllocationSite(ud, site)
	}
}

// InternString 把字符串接入驻留哈希表：如果等值字符串已存在则直接复用，
// 否则创建新条目并按哈希值分链。与宿主解释器真正的字符串驻留表是两回事，
// 这里只维护收集器自己需要的"字符串按哈希链分组"结构，供清除阶段按链
// 逐步处理（见 sweep.go 的 stepSweepString）。
func (c *Collector) InternString(s string) *GCString {
	if len(c.strHash) == 0 {
		c.strHash = make([][]*GCString, 1)
		c.strMask = 0
	}
	idx := strHashCode(s) & c.strMask
	for _, existing := range c.strHash[idx] {
		if existing.Data == s && !existing.GCHeader().IsDead(c.OtherWhite()) {
			return existing
		}
	}
	gs := NewString(c, s)
	c.strHash[idx] = append(c.strHash[idx], gs)
	c.strNum++
	c.total += stringSize(gs)
	if c.strNum > int(c.strMask+1)*2 {
		c.growStringTable()
	}
	return gs
}

// growStringTable 在字符串数量超过桶数两倍时扩容一倍并重新分链，避免
// 单条哈希链无限增长拖慢清除阶段的逐链扫描。
func (c *Collector) growStringTable() {
	newMask := (c.strMask+1)*2 - 1
	newHash := make([][]*GCString, newMask+1)
	for _, chain := range c.strHash {
		for _, s := range chain {
			idx := strHashCode(s.Data) & newMask
			newHash[idx] = append(newHash[idx], s)
		}
	}
	c.strHash = newHash
	c.strMask = newMask
}
