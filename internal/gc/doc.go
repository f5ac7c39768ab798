// Package gc 实现 Nova 运行时的垃圾回收核心。
//
// 本包是从宿主 VM（internal/vm）剥离出来的独立三色增量标记-清除收集器，
// 额外叠加了一套分代收集层。两种模式共用同一套三色机具：对象头的颜色/年龄
// 位、gray/grayagain/weak 工作队列、原子步骤、分块清除、终结器隔离、写屏障。
//
// 本包刻意不绑定 Nova 字节码的真实值表示（bytecode.Value）：对象类型布局和
// 逐类型的子对象遍历属于"外部协作者"，由本包内的最小对象集合
// （object.go）充当参考实现，供测试和独立验证三色不变式使用。真正挂进虚拟
// 机的适配层在 internal/vm/gc.go。
package gc
