package analyst_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoveryos/internal/analyst"
	"recoveryos/internal/models"
)

func TestAggregateWindow_BadTimestamp(t *testing.T) {
	history := []models.CheckIn{
		healthyCheckIn(day(1)),
		{UserID: "user-1", TS: "2025/06/14 08:00:00"},
	}

	_, err := analyst.AggregateWindow(history, 3, testNow)

	require.Error(t, err)
	assert.True(t, errors.Is(err, analyst.ErrBadTimestamp))
	assert.Contains(t, err.Error(), "2025/06/14")
}

func TestAggregateWindow_EmptyWindowUnavailable(t *testing.T) {
	// 记录都落在窗口之外
	history := []models.CheckIn{
		healthyCheckIn(day(5)),
		healthyCheckIn(day(10)),
	}

	agg, err := analyst.AggregateWindow(history, 3, testNow)

	require.NoError(t, err)
	assert.False(t, agg.Available)
	assert.Equal(t, 0, agg.Count)
	assert.Zero(t, agg.SleepAvg)
}

func TestAggregateWindow_CutoffBoundaryInclusive(t *testing.T) {
	// 恰好落在截止点上的记录属于窗口内
	history := []models.CheckIn{
		healthyCheckIn(day(3)),
	}

	agg, err := analyst.AggregateWindow(history, 3, testNow)

	require.NoError(t, err)
	assert.True(t, agg.Available)
	assert.Equal(t, 1, agg.Count)
}

func TestAggregateWindow_FiltersOlderRecords(t *testing.T) {
	history := []models.CheckIn{
		checkInAt(day(1), 6.0, 40, 80, 30, -1),
		checkInAt(day(2), 8.0, 20, 100, 10, 3),
		checkInAt(day(4), 2.0, 100, 0, 100, -10), // 超出 3 天窗口
	}

	agg, err := analyst.AggregateWindow(history, 3, testNow)

	require.NoError(t, err)
	assert.True(t, agg.Available)
	assert.Equal(t, 2, agg.Count)
	assert.InDelta(t, 7.0, agg.SleepAvg, 0.0001)
	assert.InDelta(t, 6.0, agg.SleepMin, 0.0001)
	assert.InDelta(t, 30.0, agg.IsolationAvg, 0.0001)
	assert.InDelta(t, 40.0, agg.IsolationMax, 0.0001)
	assert.InDelta(t, 90.0, agg.AdherenceAvg, 0.0001)
	assert.InDelta(t, 80.0, agg.AdherenceMin, 0.0001)
	assert.InDelta(t, 20.0, agg.CravingsAvg, 0.0001)
	assert.InDelta(t, 30.0, agg.CravingsMax, 0.0001)
	assert.InDelta(t, 1.0, agg.MoodAvg, 0.0001)
	assert.Equal(t, -1, agg.MoodMin)
}

func TestBuildWindows_AllThreeWindows(t *testing.T) {
	history := []models.CheckIn{
		checkInAt(day(1), 6.0, 40, 80, 30, -1),  // 全部窗口
		checkInAt(day(7), 8.0, 20, 100, 10, 3),  // 14/30 天
		checkInAt(day(20), 7.0, 30, 90, 20, 0),  // 仅 30 天
		checkInAt(day(45), 5.0, 60, 70, 50, -3), // 全部窗口之外
	}

	windows, err := analyst.BuildWindows(history, testNow)

	require.NoError(t, err)
	assert.Equal(t, 1, windows.ThreeDay.Count)
	assert.Equal(t, 2, windows.FourteenDay.Count)
	assert.Equal(t, 3, windows.ThirtyDay.Count)
	assert.InDelta(t, 6.0, windows.ThreeDay.SleepAvg, 0.0001)
	assert.InDelta(t, 7.0, windows.FourteenDay.SleepAvg, 0.0001)
	assert.InDelta(t, 7.0, windows.ThirtyDay.SleepAvg, 0.0001)
}

func TestBuildWindows_OrderedIteration(t *testing.T) {
	history := []models.CheckIn{healthyCheckIn(day(1))}

	windows, err := analyst.BuildWindows(history, testNow)
	require.NoError(t, err)

	ordered := windows.Ordered()
	require.Len(t, ordered, 3)
	assert.Equal(t, models.Window3Day, ordered[0].Name)
	assert.Equal(t, models.Window14Day, ordered[1].Name)
	assert.Equal(t, models.Window30Day, ordered[2].Name)
}
