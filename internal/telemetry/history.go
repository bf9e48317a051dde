package telemetry

import (
	"time"
)

// DefaultWindowCapacity 历史窗口默认容量
const DefaultWindowCapacity = 20

// Sample 单个历史样本
type Sample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Window 固定容量的指标历史窗口
//
// 按到达顺序追加样本（到达顺序即时间顺序），超出容量时淘汰最旧的样本。
// 每个 (设备, 指标) 对独占一个窗口，会话销毁时清空。
type Window struct {
	capacity int
	samples  []Sample
}

// NewWindow 创建历史窗口（capacity <= 0 时使用默认容量）
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Window{
		capacity: capacity,
		samples:  make([]Sample, 0, capacity),
	}
}

// Append 追加样本，超出容量时裁剪到最近 capacity 条
func (w *Window) Append(value float64, timestamp time.Time) {
	w.samples = append(w.samples, Sample{Value: value, Timestamp: timestamp})
	if len(w.samples) > w.capacity {
		// 只保留最近 capacity 条
		excess := len(w.samples) - w.capacity
		w.samples = append(w.samples[:0], w.samples[excess:]...)
	}
}

// Samples 返回当前样本（时间顺序，最旧在前）
func (w *Window) Samples() []Sample {
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len 当前样本数
func (w *Window) Len() int {
	return len(w.samples)
}

// Clear 清空窗口（会话销毁时调用，窗口可重新使用）
func (w *Window) Clear() {
	w.samples = w.samples[:0]
}
