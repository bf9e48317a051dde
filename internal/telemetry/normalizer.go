package telemetry

import (
	"encoding/json"
	"strconv"
	"time"

	"homesafe-telemetry/internal/models"

	"go.uber.org/zap"
)

// PayloadShape 入站载荷的形态（显式标记联合，代替逐属性探测）
type PayloadShape int

const (
	// ShapeDirect 扁平对象：带设备标识符 + 至少一个已知指标字段
	ShapeDirect PayloadShape = iota
	// ShapeNestedValue 嵌套包装：{ data: { val: {...指标...} } }，
	// 或指标直接挂在 data 下（紧急事件常见）
	ShapeNestedValue
	// ShapeDirectNoID 扁平对象：有已知指标字段但没有设备标识符
	ShapeDirectNoID
	// ShapeUnknown 无法识别的形态（丢弃，不改变状态）
	ShapeUnknown
)

// 各指标接受的字段名（主名在前，主名优先于同义词）
var (
	temperatureKeys = []string{"temperature", "temp"}
	gasKeys         = []string{"gas", "gasValue", "gas_value"}
	humidityKeys    = []string{"humidity", "hum"}
	smokeKeys       = []string{"smoke_level", "smokeLevel", "smoke"}
	flameKeys       = []string{"flame_detected", "flameDetected", "flame"}
	batteryKeys     = []string{"battery_level", "batteryLevel", "battery"}
	serialKeys      = []string{"serialNumber", "serial_number", "serial", "deviceId", "device_id"}
)

// Normalizer 载荷规范化器
//
// 将形态各异的入站载荷归并为规范化读数：已识别形态的载荷按部分更新
// 语义合并（载荷中缺失的指标保留旧值），无法识别的形态丢弃并计数。
type Normalizer struct {
	logger  *zap.Logger
	dropped int64 // 丢弃的未识别载荷计数（诊断用）
}

// NewNormalizer 创建载荷规范化器
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// DetectShape 判断载荷形态
func DetectShape(raw map[string]interface{}) PayloadShape {
	if raw == nil {
		return ShapeUnknown
	}
	if ExtractSerial(raw) != "" && hasKnownMetric(raw) {
		return ShapeDirect
	}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		if val, ok := data["val"].(map[string]interface{}); ok && hasKnownMetric(val) {
			return ShapeNestedValue
		}
		if hasKnownMetric(data) {
			return ShapeNestedValue
		}
	}
	if hasKnownMetric(raw) {
		return ShapeDirectNoID
	}
	return ShapeUnknown
}

// ExtractSerial 从载荷中提取设备标识符（没有时返回空串）
func ExtractSerial(raw map[string]interface{}) string {
	for _, key := range serialKeys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Normalize 将原始载荷合并进上一次的规范化读数
//
// 返回合并后的新读数和载荷中出现的数值型指标（供历史窗口追加）。
// 载荷形态无法识别时返回 ok=false，不产生任何状态变化。
// prior 不会被修改；对同一 prior 重复合并同一载荷结果相同。
func (n *Normalizer) Normalize(raw map[string]interface{}, prior *models.Reading, now time.Time) (*models.Reading, map[string]float64, bool) {
	shape := DetectShape(raw)

	var fields map[string]interface{}
	switch shape {
	case ShapeDirect, ShapeDirectNoID:
		fields = raw
	case ShapeNestedValue:
		data := raw["data"].(map[string]interface{})
		if val, ok := data["val"].(map[string]interface{}); ok && hasKnownMetric(val) {
			fields = val
		} else {
			fields = data
		}
	default:
		n.dropped++
		n.logger.Debug("Dropped unrecognized payload shape",
			zap.Int64("dropped_total", n.dropped),
		)
		return nil, nil, false
	}

	var merged *models.Reading
	if prior != nil {
		merged = prior.Clone()
	} else {
		merged = &models.Reading{}
	}

	numeric := make(map[string]float64)

	if v, ok := lookupFloat(fields, temperatureKeys); ok {
		merged.Temperature = &v
		numeric[models.MetricTemperature] = v
	}
	if v, ok := lookupFloat(fields, gasKeys); ok {
		merged.Gas = &v
		numeric[models.MetricGas] = v
	}
	if v, ok := lookupFloat(fields, humidityKeys); ok {
		merged.Humidity = &v
	}
	if v, ok := lookupFloat(fields, smokeKeys); ok {
		merged.SmokeLevel = &v
		numeric[models.MetricSmokeLevel] = v
	}
	if v, ok := lookupBool(fields, flameKeys); ok {
		merged.FlameDetected = &v
	}
	if v, ok := lookupFloat(fields, batteryKeys); ok {
		level := int(v)
		merged.BatteryLevel = &level
	}

	// 合并成功即刷新 last_update
	merged.LastUpdate = now

	return merged, numeric, true
}

// DroppedCount 已丢弃的未识别载荷数量
func (n *Normalizer) DroppedCount() int64 {
	return n.dropped
}

func hasKnownMetric(fields map[string]interface{}) bool {
	for _, keys := range [][]string{temperatureKeys, gasKeys, humidityKeys, smokeKeys, flameKeys, batteryKeys} {
		for _, key := range keys {
			if _, ok := fields[key]; ok {
				return true
			}
		}
	}
	return false
}

// lookupFloat 按字段名优先级取数值（主名优先于同义词）
func lookupFloat(fields map[string]interface{}, keys []string) (float64, bool) {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			if f, ok := parseFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// lookupBool 按字段名优先级取布尔值
func lookupBool(fields map[string]interface{}, keys []string) (bool, bool) {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			switch val := v.(type) {
			case bool:
				return val, true
			case string:
				if b, err := strconv.ParseBool(val); err == nil {
					return b, true
				}
			case float64:
				return val != 0, true
			}
		}
	}
	return false, false
}

// parseFloat 兼容 JSON 解码后的各种数值表示
func parseFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
