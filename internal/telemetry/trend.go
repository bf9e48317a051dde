package telemetry

// 趋势方向
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
	TrendNone   = "none"
)

// trendHysteresis 趋势判定的滞回常量（±1），抑制噪声导致的方向抖动
const trendHysteresis = 1.0

// trendSampleCount 趋势判定只看最近 3 个样本
const trendSampleCount = 3

// Trend 根据历史窗口推导指标的变化趋势
//
// 少于 2 个样本时返回 none。取最近 3 个样本，按前半/后半切分
// （奇数个时前半取 floor，后半取 ceil），分别求均值：
// 后半均值 > 前半均值 + 1 ⇒ up；后半均值 < 前半均值 - 1 ⇒ down；
// 其余为 stable。
func Trend(w *Window) string {
	if w == nil || w.Len() < 2 {
		return TrendNone
	}

	samples := w.Samples()
	if len(samples) > trendSampleCount {
		samples = samples[len(samples)-trendSampleCount:]
	}

	mid := len(samples) / 2
	earlyAvg := average(samples[:mid])
	lateAvg := average(samples[mid:])

	switch {
	case lateAvg > earlyAvg+trendHysteresis:
		return TrendUp
	case lateAvg < earlyAvg-trendHysteresis:
		return TrendDown
	default:
		return TrendStable
	}
}

func average(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}
