package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow_Append_WithinCapacity(t *testing.T) {
	w := NewWindow(20)
	base := time.Now()

	for i := 0; i < 5; i++ {
		w.Append(float64(i), base.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 5, w.Len())
	samples := w.Samples()
	assert.Equal(t, float64(0), samples[0].Value)
	assert.Equal(t, float64(4), samples[4].Value)
}

func TestWindow_Append_EvictsOldest(t *testing.T) {
	w := NewWindow(20)
	base := time.Now()

	// 追加 25 条，只保留最近 20 条
	for i := 0; i < 25; i++ {
		w.Append(float64(i), base.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 20, w.Len())

	samples := w.Samples()
	// 最旧的 5 条（0-4）被淘汰，剩下 5-24 按时间顺序
	assert.Equal(t, float64(5), samples[0].Value)
	assert.Equal(t, float64(24), samples[19].Value)
	for i := 1; i < len(samples); i++ {
		assert.True(t, samples[i].Timestamp.After(samples[i-1].Timestamp))
	}
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow(20)
	w.Append(1, time.Now())
	w.Append(2, time.Now())

	w.Clear()

	assert.Equal(t, 0, w.Len())

	// 清空后可以继续使用
	w.Append(3, time.Now())
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, float64(3), w.Samples()[0].Value)
}

func TestNewWindow_DefaultCapacity(t *testing.T) {
	w := NewWindow(0)
	base := time.Now()

	for i := 0; i < 30; i++ {
		w.Append(float64(i), base.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, DefaultWindowCapacity, w.Len())
}

func TestWindow_Samples_ReturnsCopy(t *testing.T) {
	w := NewWindow(20)
	w.Append(1, time.Now())

	samples := w.Samples()
	samples[0].Value = 999

	assert.Equal(t, float64(1), w.Samples()[0].Value)
}
