package analyst_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recoveryos/internal/analyst"
	"recoveryos/internal/models"
)

func newTestAnalyst() *analyst.PatternsAnalyst {
	cache := analyst.NewBaselineCache(analyst.NewMemoryKVStore(), time.Hour, zap.NewNop())
	return analyst.NewPatternsAnalyst(cache, zap.NewNop())
}

func TestAnalyzeAt_InsufficientData(t *testing.T) {
	a := newTestAnalyst()

	history := []models.CheckIn{
		healthyCheckIn(day(2)),
		healthyCheckIn(day(1)),
	}

	result, err := a.AnalyzeAt(context.Background(), "user-1", history, testNow)

	require.NoError(t, err)
	assert.Equal(t, models.RiskBandInsufficientData, result.RiskBand)
	assert.Nil(t, result.Score)
	assert.NotNil(t, result.Signals)
	assert.Empty(t, result.Signals)
	assert.Equal(t, []string{analyst.ReasonInsufficientData}, result.ReasonCodes)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, 2, result.Metadata.CheckinsCount)
	assert.Equal(t, analyst.MinCheckinsRequired, result.Metadata.MinRequired)
	assert.Nil(t, result.Metadata.Baselines)
}

func TestAnalyzeAt_HealthyHistoryScoresLow(t *testing.T) {
	a := newTestAnalyst()

	// 恰好达到最少打卡数，宽限期结束后进入完整分析
	history := []models.CheckIn{
		healthyCheckIn(day(3)),
		healthyCheckIn(day(2)),
		healthyCheckIn(day(1)),
	}

	result, err := a.AnalyzeAt(context.Background(), "user-1", history, testNow)

	require.NoError(t, err)
	assert.Equal(t, models.RiskBandLow, result.RiskBand)
	require.NotNil(t, result.Score)
	assert.Equal(t, 0, *result.Score)
	assert.InDelta(t, 1.0, result.Confidence, 0.0001)
	assert.Empty(t, result.Signals)
	assert.Empty(t, result.ReasonCodes)
	assert.Equal(t, 3, result.Metadata.CheckinsAnalyzed)
	require.NotNil(t, result.Metadata.Baselines)
	assert.False(t, result.Metadata.Baselines.IsDefault)
	assert.Equal(t, []string{"3day", "14day", "30day"}, result.Metadata.WindowsAvailable)
}

func TestAnalyzeAt_SleepDropWithRisingIsolation(t *testing.T) {
	a := newTestAnalyst()

	// 前两条正常，近三天睡眠持续下滑且隔离上升
	history := []models.CheckIn{
		checkInAt(day(6), 7.0, 30, 90, 20, 0),
		checkInAt(day(5), 7.0, 30, 90, 20, 0),
		checkInAt(day(2), 5.0, 70, 90, 20, 0),
		checkInAt(day(1), 4.5, 75, 90, 20, 0),
		checkInAt(day(0.5), 4.0, 80, 90, 20, 0),
	}

	result, err := a.AnalyzeAt(context.Background(), "user-1", history, testNow)

	require.NoError(t, err)

	// 基线取全部 5 条的均值：睡眠 5.5，隔离 57
	require.NotNil(t, result.Metadata.Baselines)
	assert.InDelta(t, 5.5, result.Metadata.Baselines.SleepHours, 0.0001)
	assert.InDelta(t, 57.0, result.Metadata.Baselines.Isolation, 0.0001)

	// 3 天窗口触发 sleep_low + isolation_up，长窗口均值未过阈值
	require.Len(t, result.Signals, 2)
	assert.Equal(t, models.SignalSleepLow, result.Signals[0].Type)
	assert.Equal(t, models.Window3Day, result.Signals[0].Window)
	assert.InDelta(t, 4.5, result.Signals[0].Value, 0.0001)
	require.NotNil(t, result.Signals[0].Deviation)
	assert.InDelta(t, -1.0, *result.Signals[0].Deviation, 0.0001)
	assert.Equal(t, models.SignalIsolationUp, result.Signals[1].Type)
	assert.Equal(t, models.Window3Day, result.Signals[1].Window)
	assert.InDelta(t, 75.0, result.Signals[1].Value, 0.0001)

	assert.Equal(t, []string{
		analyst.ReasonSleepDisruption,
		analyst.ReasonSocialWithdrawal,
		analyst.ReasonSleepIsolationCombo,
	}, result.ReasonCodes)

	require.NotNil(t, result.Score)
	assert.Equal(t, 22, *result.Score)
	assert.Equal(t, models.RiskBandLow, result.RiskBand)
	assert.InDelta(t, 0.7, result.Confidence, 0.0001)

	assert.Equal(t, 3, result.Windows.ThreeDay.Count)
	assert.Equal(t, 5, result.Windows.FourteenDay.Count)
	assert.Equal(t, 5, result.Windows.ThirtyDay.Count)
}

func TestAnalyzeAt_RaisingIsolationNeverLowersScore(t *testing.T) {
	// 两份历史只有隔离程度不同，更高的隔离不能得到更低的风险分
	base := []models.CheckIn{
		checkInAt(day(6), 7.0, 30, 90, 20, 0),
		checkInAt(day(5), 7.0, 30, 90, 20, 0),
		checkInAt(day(2), 5.0, 70, 90, 20, 0),
		checkInAt(day(1), 4.5, 75, 90, 20, 0),
		checkInAt(day(0.5), 4.0, 80, 90, 20, 0),
	}
	raised := []models.CheckIn{
		checkInAt(day(6), 7.0, 30, 90, 20, 0),
		checkInAt(day(5), 7.0, 30, 90, 20, 0),
		checkInAt(day(2), 5.0, 95, 90, 20, 0),
		checkInAt(day(1), 4.5, 100, 90, 20, 0),
		checkInAt(day(0.5), 4.0, 100, 90, 20, 0),
	}

	// 基线缓存按用户键控，各用独立实例避免互相影响
	baseResult, err := newTestAnalyst().AnalyzeAt(context.Background(), "user-1", base, testNow)
	require.NoError(t, err)
	raisedResult, err := newTestAnalyst().AnalyzeAt(context.Background(), "user-1", raised, testNow)
	require.NoError(t, err)

	require.NotNil(t, baseResult.Score)
	require.NotNil(t, raisedResult.Score)
	assert.GreaterOrEqual(t, *raisedResult.Score, *baseResult.Score)
	assert.GreaterOrEqual(t, len(raisedResult.Signals), len(baseResult.Signals))
}

func TestAnalyzeAt_BadTimestampFailsWholeAnalysis(t *testing.T) {
	a := newTestAnalyst()

	history := []models.CheckIn{
		healthyCheckIn(day(3)),
		{UserID: "user-1", TS: "yesterday", SleepHours: 7.0},
		healthyCheckIn(day(1)),
	}

	result, err := a.AnalyzeAt(context.Background(), "user-1", history, testNow)

	require.Error(t, err)
	assert.True(t, errors.Is(err, analyst.ErrBadTimestamp))
	assert.Nil(t, result)
}

func TestAnalyzeAt_Deterministic(t *testing.T) {
	a := newTestAnalyst()

	history := []models.CheckIn{
		checkInAt(day(6), 7.0, 30, 90, 20, 0),
		checkInAt(day(5), 7.0, 30, 90, 20, 0),
		checkInAt(day(2), 5.0, 70, 90, 20, 0),
		checkInAt(day(1), 4.5, 75, 90, 20, 0),
		checkInAt(day(0.5), 4.0, 80, 90, 20, 0),
	}

	first, err := a.AnalyzeAt(context.Background(), "user-1", history, testNow)
	require.NoError(t, err)
	second, err := a.AnalyzeAt(context.Background(), "user-1", history, testNow)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
