package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func windowWith(values ...float64) *Window {
	w := NewWindow(20)
	base := time.Now()
	for i, v := range values {
		w.Append(v, base.Add(time.Duration(i)*time.Second))
	}
	return w
}

func TestTrend_NotEnoughSamples(t *testing.T) {
	assert.Equal(t, TrendNone, Trend(nil))
	assert.Equal(t, TrendNone, Trend(windowWith()))
	assert.Equal(t, TrendNone, Trend(windowWith(10)))
}

func TestTrend_Stable(t *testing.T) {
	// [10,10,10] ⇒ 前半均值 10，后半均值 10 ⇒ stable
	assert.Equal(t, TrendStable, Trend(windowWith(10, 10, 10)))

	// 差值在 ±1 滞回范围内仍然是 stable
	assert.Equal(t, TrendStable, Trend(windowWith(10, 10, 11)))
	assert.Equal(t, TrendStable, Trend(windowWith(10, 10, 9)))
}

func TestTrend_Up(t *testing.T) {
	// [10,10,10,20]：只看最近 3 个 [10,10,20]，前半均值 10，后半均值 15 ⇒ up
	assert.Equal(t, TrendUp, Trend(windowWith(10, 10, 10, 20)))
}

func TestTrend_Down(t *testing.T) {
	// 最近 3 个 [20,20,5]，前半均值 20，后半均值 12.5 ⇒ down
	assert.Equal(t, TrendDown, Trend(windowWith(20, 20, 20, 5)))
}

func TestTrend_TwoSamples(t *testing.T) {
	// 2 个样本时前半/后半各 1 个
	assert.Equal(t, TrendUp, Trend(windowWith(10, 15)))
	assert.Equal(t, TrendDown, Trend(windowWith(15, 10)))
	assert.Equal(t, TrendStable, Trend(windowWith(10, 10.5)))
}

func TestTrend_OnlyLastThreeConsidered(t *testing.T) {
	// 更早的大波动不影响结果：只看最近 3 个 [30,30,30]
	assert.Equal(t, TrendStable, Trend(windowWith(100, 1, 30, 30, 30)))
}
