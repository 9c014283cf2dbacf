// Package sandbox 提供单元格代码的静态检查与隔离执行运行时。
//
// Validator 在执行前解析 JavaScript 源码并按名称黑名单拒绝三类结构：
// require 禁用模块、按名调用 eval/Function、以禁用模块名为根的成员访问。
// 这是名称黑名单而非能力沙箱，别名、间接引用与动态构造的调用均可绕过。
//
// Runtime 为每次执行创建独立的 goja 虚拟机，print 与 console 写入
// 该运行时自己的 Sink，不触碰进程级输出流；执行上限由 context 驱动的
// Interrupt 实现。
package sandbox
