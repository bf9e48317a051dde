package severity

// 严重程度分级（按风险升序：safe < warning < danger < critical）
const (
	TierSafe     = "safe"
	TierWarning  = "warning"
	TierDanger   = "danger"
	TierCritical = "critical"
)

// 设备类别（决定气体阈值的倍率）
const (
	DeviceClassGasSensor     = "gas_sensor"
	DeviceClassSmokeDetector = "smoke_detector"
)

// tierRank 分级的固定顺序
var tierRank = map[string]int{
	TierSafe:     0,
	TierWarning:  1,
	TierDanger:   2,
	TierCritical: 3,
}

// Rank 返回分级在固定顺序中的位置（用于比较）
func Rank(tier string) int {
	return tierRank[tier]
}

// Breakpoints 单个指标的升序阈值断点
type Breakpoints struct {
	Warning  float64
	Danger   float64
	Critical float64
}

// Profile 阈值配置：每个数值指标一组升序断点
//
// 断点只读，可跨会话安全共享。火焰检测与阈值配置无关：
// flame_detected == true 永远是 critical。
type Profile struct {
	Gas         Breakpoints
	Temperature Breakpoints
	SmokeLevel  Breakpoints
}

// DefaultProfile 默认阈值配置（参考断点）
//
// gas (ppm): ≥1000 critical, ≥600 danger, ≥300 warning
// temperature (°C): ≥55 critical, ≥45 danger, ≥35 warning
// smoke_level: ≥800 critical, ≥500 danger, ≥200 warning
func DefaultProfile() *Profile {
	return &Profile{
		Gas:         Breakpoints{Warning: 300, Danger: 600, Critical: 1000},
		Temperature: Breakpoints{Warning: 35, Danger: 45, Critical: 55},
		SmokeLevel:  Breakpoints{Warning: 200, Danger: 500, Critical: 800},
	}
}

// GasSensorProfile 通用气体传感器配置
//
// 气体断点由可调校准基准构建：warning ×1, danger ×2, critical ×3。
func GasSensorProfile(base float64) *Profile {
	p := DefaultProfile()
	p.Gas = Breakpoints{
		Warning:  base,
		Danger:   base * 2,
		Critical: base * 3,
	}
	return p
}

// SmokeDetectorProfile 烟雾/火灾探测器配置
//
// 气体当量断点倍率与通用气体传感器不同：warning ×1, danger ×1.5, critical ×2。
func SmokeDetectorProfile(base float64) *Profile {
	p := DefaultProfile()
	p.Gas = Breakpoints{
		Warning:  base,
		Danger:   base * 1.5,
		Critical: base * 2,
	}
	return p
}

// ProfileForClass 按设备类别构建阈值配置
//
// 未知类别回退到默认配置。
func ProfileForClass(deviceClass string, base float64) *Profile {
	switch deviceClass {
	case DeviceClassGasSensor:
		return GasSensorProfile(base)
	case DeviceClassSmokeDetector:
		return SmokeDetectorProfile(base)
	default:
		return DefaultProfile()
	}
}
