package alerts

import (
	"fmt"

	"homesafe-telemetry/internal/models"
	"homesafe-telemetry/internal/severity"
)

// emergencyMarker critical 级消息的紧急标记
const emergencyMarker = "EMERGENCY"

// CategoryForMetric 指标到报警类别的映射
//
// 烟雾浓度归入空气质量类别；火焰走独立的 fire 类别（由 ApplyFlame
// 处理，不经过本映射）。
func CategoryForMetric(metric string) string {
	switch metric {
	case models.MetricGas:
		return models.CategoryGas
	case models.MetricSmokeLevel:
		return models.CategoryAirQuality
	case models.MetricTemperature:
		return models.CategoryTemperature
	default:
		return ""
	}
}

// MessageFor 生成报警消息文案
func MessageFor(metric, tier string, value float64) string {
	label, unit := metricLabel(metric)

	if tier == severity.TierCritical {
		return fmt.Sprintf("%s: %s reached %.0f%s, exceeds critical threshold", emergencyMarker, label, value, unit)
	}
	return fmt.Sprintf("%s elevated: %.0f%s (%s)", label, value, unit, tier)
}

// FlameMessage 火焰检测的报警消息
func FlameMessage() string {
	return fmt.Sprintf("%s: flame detected", emergencyMarker)
}

func metricLabel(metric string) (string, string) {
	switch metric {
	case models.MetricGas:
		return "Gas concentration", " ppm"
	case models.MetricSmokeLevel:
		return "Smoke level", ""
	case models.MetricTemperature:
		return "Temperature", " °C"
	default:
		return metric, ""
	}
}
