package gc

import "go.uber.org/zap"

// 步调常量，直接对应 original_source/lj_gc.c 的 GCSTEPSIZE/GCSWEEPMAX/...
const (
	StepSize      = 1024 // 每个增量步的基准字节预算
	SweepMax      = 40   // 每步最多清除的对象数
	SweepCost     = 10   // 每清除一个对象计的"字节"成本
	FinalizeCost  = 100  // 每执行一个终结器计的"字节"成本
	maxMem        = int(^uint(0) >> 1)
	minStrMask    = 2*1 - 1 // 字符串表最小容量下限（对应 LJ_MIN_STRTAB*2-1）
)

// State 是收集器的阶段状态机。
type State uint8

const (
	StatePause State = iota
	StatePropagate
	StateAtomic
	StateSweepString
	StateSweep
	StateFinalize
)

func (s State) String() string {
	switch s {
	case StatePause:
		return "pause"
	case StatePropagate:
		return "propagate"
	case StateAtomic:
		return "atomic"
	case StateSweepString:
		return "sweepstring"
	case StateSweep:
		return "sweep"
	case StateFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Kind 选择增量或分代收集模式。
type Kind uint8

const (
	KindIncremental Kind = iota
	KindGenerational
)

// Finalizer 是宿主解释器提供的受保护调用原语（§1 "Finalizer invocation
// mechanism"的外部契约）：在隔离边界内调用 fn，用 recover 吞掉 panic。
type Finalizer func(obj GCObject) error

// Collector 是垃圾回收器的全局状态（对应 spec 的 "global collector state G"）。
//
// 单线程协作式运行：没有互斥锁，没有原子内存序——调用方负责在合适的时机
// （分配点、显式 FullGC）驱动状态机前进，参见 SPEC_FULL.md §5。
type Collector struct {
	rootSentinel Header // 主链表哨兵，rootSentinel.next 是第一个真实对象

	strHash [][]*GCString // 字符串哈希链，索引 0..strMask
	strMask uint32
	strNum  int

	gray      *Header // 灰色工作队列（经 gclist 链接）
	grayAgain *Header // 需要在原子步重新扫描的对象
	weak      *Header // 已发现的弱表列表

	mmudata *Header // 待终结 userdata/cdata 的循环链表（复用 next 字段）

	sweepPrev      *Header // 主链表清除游标：指向"上一个"节点，当前节点是 sweepPrev.next
	udataSweepPrev *Header // userdata 链表清除游标，紧跟主链表清除完毕后启用
	sweepStr       int     // 字符串哈希链清除游标

	state State
	kind  Kind

	currentWhite MarkBits

	total     int64 // 已分配的总字节数
	estimate  int64 // 上个周期结束时的存活量估计
	threshold int64 // 下次触发的字节阈值
	debt      int64 // 累积的内存欠账

	stepMul     int // 百分比：每分配一字节标记多少字节
	pause       int // 百分比：增量模式下两次周期之间的堆增长许可
	genMinorMul int // 百分比：分代模式下年轻代触发增长率
	genMajorMul int // 百分比：分代模式下主周期触发增长率

	// 分代模式下主链表按年龄划分出的三个锚点（均指向 rootSentinel 之后的
	// 某个节点，表示 [root, survival) 是本周期新分配，[survival, old) 是
	// SURVIVAL/OLD0/OLD1，[old, reallyold) 同样，[reallyold, end) 是稳定 OLD）。
	survival  *Header
	old       *Header
	reallyOld *Header

	udataSentinel Header // userdata 独立链表哨兵（主链表之外单独维护，便于终结器分离）
	udataSur      *Header
	udataOld      *Header
	udataRold     *Header

	uvHead GCUpvalue // 所有打开 upvalue 的全局双向链表哨兵（不受 GC 管理）

	finalizers map[GCObject]Finalizer // __gc / 外部终结器表
	pendingErr error                  // 累积的终结器错误（multierr 聚合）

	jitBase bool // 是否正在执行已编译的 trace（原子步在此期间拒绝运行）

	enabled bool
	debug   bool

	log *zap.Logger

	stats      CycleStats
	lastCycle  CycleStats
	allocSites map[GCObject]AllocationSite
	leakDetect bool

	// 分代主周期触发判断用：上一次记录的 estimate 基线
	majorBase int64

	// 与被追踪对象生命周期无关的 Go 原生切片复用池
	arrayPool *ObjectPool
	argsPool  *ArgsPool
}

// NewCollector 创建处于 Pause 状态、增量模式、字符串表至少有一个链的收集器。
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		strHash:      make([][]*GCString, 1),
		strMask:      0,
		state:        StatePause,
		kind:         KindIncremental,
		currentWhite: BitWhite0,
		stepMul:      200,
		pause:        200,
		genMinorMul:  20,
		genMajorMul:  100,
		enabled:      true,
		finalizers:   make(map[GCObject]Finalizer),
		allocSites:   make(map[GCObject]AllocationSite),
		log:          zap.NewNop(),
	}
	c.arrayPool = NewObjectPool(32,
		func() interface{} { return make([]Value, 0, 8) },
		func(obj interface{}) {
			arr := obj.([]Value)
			for i := range arr {
				arr[i] = Nil
			}
		},
	)
	c.argsPool = NewArgsPool()
	c.udataSur, c.udataOld, c.udataRold = nil, nil, nil
	c.sweepPrev = &c.rootSentinel
	c.uvHead.OpenPrev = &c.uvHead
	c.uvHead.OpenNext = &c.uvHead
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LinkOpenUpvalue 把新打开的 upvalue 登记进全局打开 upvalue 链表头部。
func (c *Collector) LinkOpenUpvalue(uv *GCUpvalue) {
	head := &c.uvHead
	uv.OpenNext = head.OpenNext
	uv.OpenPrev = head
	head.OpenNext.OpenPrev = uv
	head.OpenNext = uv
}

// UnlinkOpenUpvalue 在 upvalue 关闭时将其从全局打开链表摘下。
func (c *Collector) UnlinkOpenUpvalue(uv *GCUpvalue) {
	if uv.OpenPrev == nil {
		return
	}
	uv.OpenPrev.OpenNext = uv.OpenNext
	uv.OpenNext.OpenPrev = uv.OpenPrev
	uv.OpenPrev, uv.OpenNext = nil, nil
}

// OpenUpvalues 按链表顺序返回当前所有打开的 upvalue。
func (c *Collector) OpenUpvalues() []*GCUpvalue {
	var out []*GCUpvalue
	for uv := c.uvHead.OpenNext; uv != &c.uvHead; uv = uv.OpenNext {
		out = append(out, uv)
	}
	return out
}

// Option 配置 NewCollector。
type Option func(*Collector)

func WithLogger(log *zap.Logger) Option {
	return func(c *Collector) {
		if log != nil {
			c.log = log
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Collector) {
		c.pause = cfg.Pause
		c.stepMul = cfg.StepMul
		c.genMinorMul = cfg.GenMinorMul
		c.genMajorMul = cfg.GenMajorMul
	}
}

// State/Kind/诊断读取接口 ------------------------------------------------------

func (c *Collector) State() State           { return c.state }
func (c *Collector) Kind() Kind             { return c.kind }
func (c *Collector) CurrentWhite() MarkBits { return c.currentWhite }
func (c *Collector) OtherWhite() MarkBits   { return otherWhite(c.currentWhite) }
func (c *Collector) Total() int64           { return c.total }
func (c *Collector) Estimate() int64        { return c.estimate }
func (c *Collector) Threshold() int64       { return c.threshold }
func (c *Collector) Debt() int64            { return c.debt }

func (c *Collector) SetEnabled(v bool) { c.enabled = v }
func (c *Collector) Enabled() bool     { return c.enabled }

func (c *Collector) SetDebug(v bool) {
	c.debug = v
	if v {
		c.leakDetect = true
	}
}

// SetJITBase 由 VM 在进入/退出已编译 trace 执行时调用。
func (c *Collector) SetJITBase(active bool) { c.jitBase = active }

// Root 返回主链表的第一个真实节点（可能为 nil）。
func (c *Collector) Root() *Header { return c.rootSentinel.next }

// linkRoot 把 h 链接到主链表头部（新对象分配时使用）。
func (c *Collector) linkRoot(h *Header) {
	h.next = c.rootSentinel.next
	c.rootSentinel.next = h
}
