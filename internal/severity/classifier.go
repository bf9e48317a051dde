package severity

import (
	"homesafe-telemetry/internal/models"
)

// Classify 把指标值映射到严重程度分级
//
// 纯函数：给定同一配置，分级随指标值单调不降。
// 未参与分类的指标（湿度、电量）恒为 safe。
func Classify(metric string, value float64, profile *Profile) string {
	if profile == nil {
		profile = DefaultProfile()
	}

	var bp Breakpoints
	switch metric {
	case models.MetricGas:
		bp = profile.Gas
	case models.MetricTemperature:
		bp = profile.Temperature
	case models.MetricSmokeLevel:
		bp = profile.SmokeLevel
	default:
		return TierSafe
	}

	switch {
	case value >= bp.Critical:
		return TierCritical
	case value >= bp.Danger:
		return TierDanger
	case value >= bp.Warning:
		return TierWarning
	default:
		return TierSafe
	}
}

// ClassifyFlame 火焰检测的分级
//
// flame_detected == true 永远是 critical，与数值断点和阈值配置无关。
func ClassifyFlame(detected bool) string {
	if detected {
		return TierCritical
	}
	return TierSafe
}
