package alerts

import (
	"strings"
	"testing"
	"time"

	"homesafe-telemetry/internal/models"
	"homesafe-telemetry/internal/severity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_CriticalAlert_NeverExpires(t *testing.T) {
	m := NewManager(50*time.Millisecond, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryGas, severity.TierCritical, MessageFor(models.MetricGas, severity.TierCritical, 1200), nil)

	record := m.Get(models.CategoryGas)
	require.NotNil(t, record)
	assert.Equal(t, severity.TierCritical, record.Severity)
	// critical 记录永不携带 ExpiresAt
	assert.Nil(t, record.ExpiresAt)
	assert.True(t, strings.Contains(record.Message, "EMERGENCY"))

	// 超过自动清除窗口后仍然存在
	time.Sleep(120 * time.Millisecond)
	assert.NotNil(t, m.Get(models.CategoryGas))
}

func TestManager_WarningAlert_AutoExpires(t *testing.T) {
	m := NewManager(50*time.Millisecond, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryTemperature, severity.TierWarning, MessageFor(models.MetricTemperature, severity.TierWarning, 38), nil)

	record := m.Get(models.CategoryTemperature)
	require.NotNil(t, record)
	require.NotNil(t, record.ExpiresAt)

	// 无刷新时窗口过后记录消失
	time.Sleep(120 * time.Millisecond)
	assert.Nil(t, m.Get(models.CategoryTemperature))
	assert.Empty(t, m.Active())
}

func TestManager_SafeClearsImmediately(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryGas, severity.TierCritical, "msg", nil)
	require.NotNil(t, m.Get(models.CategoryGas))

	// safe 立即清除，没有宽限期
	m.Apply(models.CategoryGas, severity.TierSafe, "", nil)
	assert.Nil(t, m.Get(models.CategoryGas))
}

func TestManager_GasScenario(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	defer m.Close()

	// gas=1200 ⇒ critical，消息带紧急标记
	gas := 1200.0
	snapshot := &models.Reading{Gas: &gas}
	m.Apply(models.CategoryGas, severity.TierCritical, MessageFor(models.MetricGas, severity.TierCritical, 1200), snapshot)

	record := m.Get(models.CategoryGas)
	require.NotNil(t, record)
	assert.Contains(t, record.Message, "EMERGENCY")
	require.NotNil(t, record.Snapshot)
	assert.Equal(t, 1200.0, *record.Snapshot.Gas)

	// gas=50 ⇒ safe，记录被清除
	m.Apply(models.CategoryGas, severity.TierSafe, "", nil)
	assert.Nil(t, m.Get(models.CategoryGas))
}

func TestManager_ReplacementRestartsExpiry(t *testing.T) {
	m := NewManager(80*time.Millisecond, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryTemperature, severity.TierWarning, "first", nil)

	// 旧窗口快到期时刷新，替换取消旧定时器并重新计时
	time.Sleep(50 * time.Millisecond)
	m.Apply(models.CategoryTemperature, severity.TierDanger, "second", nil)

	// 旧定时器的触发点已过，但新记录仍然存在
	time.Sleep(50 * time.Millisecond)
	record := m.Get(models.CategoryTemperature)
	require.NotNil(t, record)
	assert.Equal(t, "second", record.Message)

	// 新窗口过后才清除
	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, m.Get(models.CategoryTemperature))
}

func TestManager_EscalationToCritical_CancelsExpiry(t *testing.T) {
	m := NewManager(50*time.Millisecond, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryGas, severity.TierWarning, "warning", nil)
	m.Apply(models.CategoryGas, severity.TierCritical, "critical", nil)

	// 升级为 critical 后旧的 warning 定时器不得清除记录
	time.Sleep(120 * time.Millisecond)
	record := m.Get(models.CategoryGas)
	require.NotNil(t, record)
	assert.Equal(t, severity.TierCritical, record.Severity)
	assert.Nil(t, record.ExpiresAt)
}

func TestManager_FlamePersistsUntilCleared(t *testing.T) {
	m := NewManager(50*time.Millisecond, zap.NewNop())
	defer m.Close()

	flame := true
	m.ApplyFlame(true, &models.Reading{FlameDetected: &flame})

	record := m.Get(models.CategoryFire)
	require.NotNil(t, record)
	assert.Equal(t, severity.TierCritical, record.Severity)
	assert.Nil(t, record.ExpiresAt)

	// 时间流逝不清除 fire 记录
	time.Sleep(120 * time.Millisecond)
	assert.NotNil(t, m.Get(models.CategoryFire))

	// flame_detected 恢复 false 的瞬间清除
	m.ApplyFlame(false, nil)
	assert.Nil(t, m.Get(models.CategoryFire))
}

func TestManager_Dismiss(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryGas, severity.TierCritical, "msg", nil)
	require.NotNil(t, m.Get(models.CategoryGas))

	// 手动关闭对任何分级都有效
	m.Dismiss(models.CategoryGas)
	assert.Nil(t, m.Get(models.CategoryGas))

	// 条件持续存在时可以再次触发
	m.Apply(models.CategoryGas, severity.TierCritical, "msg", nil)
	assert.NotNil(t, m.Get(models.CategoryGas))
}

func TestManager_IndependentCategories(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryGas, severity.TierCritical, "gas", nil)
	m.Apply(models.CategoryTemperature, severity.TierWarning, "temp", nil)
	m.ApplyFlame(true, nil)

	// 各类别互不影响，可同时活动
	assert.Len(t, m.Active(), 3)

	m.Dismiss(models.CategoryGas)
	assert.Len(t, m.Active(), 2)
	assert.NotNil(t, m.Get(models.CategoryTemperature))
	assert.NotNil(t, m.Get(models.CategoryFire))
}

func TestManager_Close_CancelsTimers(t *testing.T) {
	m := NewManager(50*time.Millisecond, zap.NewNop())

	m.Apply(models.CategoryGas, severity.TierWarning, "msg", nil)
	m.Close()

	assert.Empty(t, m.Active())

	// 关闭后不再接受新报警，也没有定时器触发引起的状态变化
	m.Apply(models.CategoryGas, severity.TierWarning, "msg", nil)
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, m.Active())
}

func TestManager_RaiseHook(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	defer m.Close()

	var raised []models.AlertRecord
	m.SetRaiseHook(func(r *models.AlertRecord) {
		raised = append(raised, *r)
	})

	m.Apply(models.CategoryGas, severity.TierWarning, "w", nil)
	m.Apply(models.CategoryGas, severity.TierCritical, "c", nil)
	// safe 清除不触发 hook
	m.Apply(models.CategoryGas, severity.TierSafe, "", nil)

	require.Len(t, raised, 2)
	assert.Equal(t, severity.TierWarning, raised[0].Severity)
	assert.Equal(t, severity.TierCritical, raised[1].Severity)
}

func TestManager_RaiseHook_OnTransitionsOnly(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	defer m.Close()

	var raised []models.AlertRecord
	m.SetRaiseHook(func(r *models.AlertRecord) {
		raised = append(raised, *r)
	})

	// 条件持续期间的同分级刷新不重复触发 hook
	m.Apply(models.CategoryGas, severity.TierWarning, "w1", nil)
	m.Apply(models.CategoryGas, severity.TierWarning, "w2", nil)
	m.Apply(models.CategoryGas, severity.TierWarning, "w3", nil)
	require.Len(t, raised, 1)

	// 分级变化才算状态迁移
	m.Apply(models.CategoryGas, severity.TierDanger, "d", nil)
	require.Len(t, raised, 2)
	assert.Equal(t, severity.TierDanger, raised[1].Severity)

	// 清除后再触发是新一轮迁移
	m.Apply(models.CategoryGas, severity.TierSafe, "", nil)
	m.Apply(models.CategoryGas, severity.TierWarning, "w4", nil)
	require.Len(t, raised, 3)
}

func TestManager_SteadyStateRefreshRestartsExpiry(t *testing.T) {
	m := NewManager(80*time.Millisecond, zap.NewNop())
	defer m.Close()

	m.Apply(models.CategoryTemperature, severity.TierWarning, "msg", nil)

	// 同分级刷新重置自动清除窗口
	time.Sleep(50 * time.Millisecond)
	m.Apply(models.CategoryTemperature, severity.TierWarning, "msg", nil)

	// 首次窗口的触发点已过，记录仍然存在
	time.Sleep(50 * time.Millisecond)
	require.NotNil(t, m.Get(models.CategoryTemperature))

	// 刷新后的窗口过后才清除
	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, m.Get(models.CategoryTemperature))
}

func TestCategoryForMetric(t *testing.T) {
	assert.Equal(t, models.CategoryGas, CategoryForMetric(models.MetricGas))
	assert.Equal(t, models.CategoryAirQuality, CategoryForMetric(models.MetricSmokeLevel))
	assert.Equal(t, models.CategoryTemperature, CategoryForMetric(models.MetricTemperature))
	assert.Equal(t, "", CategoryForMetric(models.MetricHumidity))
}

func TestMessageFor(t *testing.T) {
	critical := MessageFor(models.MetricGas, severity.TierCritical, 1200)
	assert.Contains(t, critical, "EMERGENCY")
	assert.Contains(t, critical, "1200")

	warning := MessageFor(models.MetricTemperature, severity.TierWarning, 38)
	assert.NotContains(t, warning, "EMERGENCY")
	assert.Contains(t, warning, "38")
}
