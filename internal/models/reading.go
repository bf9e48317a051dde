package models

import (
	"time"
)

// 标准指标名称（规范化后的字段名）
const (
	MetricTemperature = "temperature"
	MetricGas         = "gas"
	MetricHumidity    = "humidity"
	MetricSmokeLevel  = "smoke_level"
	MetricFlame       = "flame_detected"
	MetricBattery     = "battery_level"
)

// NumericMetrics 参与历史窗口和阈值分类的数值型指标
// （湿度、电量只做展示，不做历史和分类；火焰是布尔量）
var NumericMetrics = []string{MetricTemperature, MetricGas, MetricSmokeLevel}

// Reading 设备的规范化实时读数
//
// 所有指标字段都是可空的：设备上报的载荷中缺失的字段保留上一次的值
// （部分更新语义），绝不会被静默重置为空。
type Reading struct {
	Temperature   *float64  `json:"temperature,omitempty"`
	Gas           *float64  `json:"gas,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"`
	SmokeLevel    *float64  `json:"smoke_level,omitempty"`
	FlameDetected *bool     `json:"flame_detected,omitempty"`
	BatteryLevel  *int      `json:"battery_level,omitempty"`
	LastUpdate    time.Time `json:"last_update"`
}

// Clone 深拷贝读数（报警快照用，避免后续合并修改快照）
func (r *Reading) Clone() *Reading {
	clone := &Reading{LastUpdate: r.LastUpdate}
	if r.Temperature != nil {
		v := *r.Temperature
		clone.Temperature = &v
	}
	if r.Gas != nil {
		v := *r.Gas
		clone.Gas = &v
	}
	if r.Humidity != nil {
		v := *r.Humidity
		clone.Humidity = &v
	}
	if r.SmokeLevel != nil {
		v := *r.SmokeLevel
		clone.SmokeLevel = &v
	}
	if r.FlameDetected != nil {
		v := *r.FlameDetected
		clone.FlameDetected = &v
	}
	if r.BatteryLevel != nil {
		v := *r.BatteryLevel
		clone.BatteryLevel = &v
	}
	return clone
}

// NumericValue 按标准指标名取数值（指标缺失时返回 false）
func (r *Reading) NumericValue(metric string) (float64, bool) {
	switch metric {
	case MetricTemperature:
		if r.Temperature != nil {
			return *r.Temperature, true
		}
	case MetricGas:
		if r.Gas != nil {
			return *r.Gas, true
		}
	case MetricHumidity:
		if r.Humidity != nil {
			return *r.Humidity, true
		}
	case MetricSmokeLevel:
		if r.SmokeLevel != nil {
			return *r.SmokeLevel, true
		}
	}
	return 0, false
}
