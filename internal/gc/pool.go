package gc

// ObjectPool 是一个通用的对象池，用于复用与收集器生命周期无关的 Go 原生
// 切片/缓冲区（例如 Table 的 Array 段、临时 Value 切片），避免在标记/清除
// 热路径之外频繁分配。池中对象从不被 mark/sweep 追踪。
type ObjectPool struct {
	pool      []interface{}
	maxSize   int
	newFunc   func() interface{}
	resetFunc func(interface{})

	hits   int64
	misses int64
}

// NewObjectPool 创建一个对象池。
func NewObjectPool(maxSize int, newFunc func() interface{}, resetFunc func(interface{})) *ObjectPool {
	return &ObjectPool{
		pool:      make([]interface{}, 0, maxSize),
		maxSize:   maxSize,
		newFunc:   newFunc,
		resetFunc: resetFunc,
	}
}

// Get 从池中取出一个对象，池为空时新建。
func (p *ObjectPool) Get() interface{} {
	if len(p.pool) > 0 {
		obj := p.pool[len(p.pool)-1]
		p.pool = p.pool[:len(p.pool)-1]
		p.hits++
		return obj
	}
	p.misses++
	return p.newFunc()
}

// Put 归还一个对象，池满时直接丢弃（交给 Go 运行时自身的 GC）。
func (p *ObjectPool) Put(obj interface{}) {
	if len(p.pool) < p.maxSize {
		if p.resetFunc != nil {
			p.resetFunc(obj)
		}
		p.pool = append(p.pool, obj)
	}
}

// Stats 返回命中/未命中次数与当前池内对象数。
func (p *ObjectPool) Stats() (hits, misses int64, poolSize int) {
	return p.hits, p.misses, len(p.pool)
}

// argPoolSizes 是参数数组池的大小档位。
var argPoolSizes = [5]int{4, 8, 16, 32, 64}

// ArgsPool 按大小分档管理 []Value 切片，减少表/函数遍历时的临时分配。
type ArgsPool struct {
	pools [5]*ObjectPool
}

// NewArgsPool 创建一个按档位分桶的参数数组池。
func NewArgsPool() *ArgsPool {
	m := &ArgsPool{}
	for i, size := range argPoolSizes {
		bucketSize := size
		m.pools[i] = NewObjectPool(32,
			func() interface{} { return make([]Value, 0, bucketSize) },
			func(obj interface{}) {
				arr := obj.([]Value)
				for j := range arr {
					arr[j] = Nil
				}
			},
		)
	}
	return m
}

func (m *ArgsPool) bucketIndex(size int) int {
	for i, s := range argPoolSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// Get 取出一个长度为 size 的 []Value，超出最大档位时直接分配。
func (m *ArgsPool) Get(size int) []Value {
	idx := m.bucketIndex(size)
	if idx < 0 {
		return make([]Value, size)
	}
	arr := m.pools[idx].Get().([]Value)
	if cap(arr) >= size {
		return arr[:size]
	}
	return make([]Value, size)
}

// Return 归还一个 []Value，超出最大档位时丢弃。
func (m *ArgsPool) Return(arr []Value) {
	if arr == nil {
		return
	}
	idx := m.bucketIndex(cap(arr))
	if idx < 0 {
		return
	}
	for i := range arr {
		arr[i] = Nil
	}
	m.pools[idx].Put(arr[:0])
}

// Stats 汇总所有档位的命中/未命中次数与池大小。
func (m *ArgsPool) Stats() (hits, misses int64, poolSizes []int) {
	poolSizes = make([]int, len(m.pools))
	for i, p := range m.pools {
		h, mi, s := p.Stats()
		hits += h
		misses += mi
		poolSizes[i] = s
	}
	return hits, misses, poolSizes
}

// GetArray 从数组池取出一个 []Value 背衬数组。
func (c *Collector) GetArray() []Value {
	return c.arrayPool.Get().([]Value)
}

// ReturnArray 归还一个 []Value 背衬数组到数组池。
func (c *Collector) ReturnArray(arr []Value) {
	if cap(arr) <= 64 {
		c.arrayPool.Put(arr[:0])
	}
}

// GetArgs 从参数数组池取出一个长度为 size 的 []Value。
func (c *Collector) GetArgs(size int) []Value {
	return c.argsPool.Get(size)
}

// ReturnArgs 归还一个参数数组。
func (c *Collector) ReturnArgs(arr []Value) {
	c.argsPool.Return(arr)
}

// PoolStats 返回数组池与参数池的命中/未命中统计，供诊断使用。
func (c *Collector) PoolStats() map[string]map[string]int64 {
	arrHits, arrMisses, arrSize := c.arrayPool.Stats()
	argHits, argMisses, argSizes := c.argsPool.Stats()

	total := 0
	for _, s := range argSizes {
		total += s
	}

	return map[string]map[string]int64{
		"array": {
			"hits":   arrHits,
			"misses": arrMisses,
			"size":   int64(arrSize),
		},
		"args": {
			"hits":   argHits,
			"misses": argMisses,
			"size":   int64(total),
		},
	}
}
