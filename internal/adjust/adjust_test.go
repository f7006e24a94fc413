package adjust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/data-ngin/internal/model"
)

func bar(day int, contract string, open, close float64, volume int64) model.Bar {
	return model.Bar{
		Time:     time.Date(2023, 3, day, 0, 0, 0, 0, time.UTC),
		Symbol:   "ES",
		Contract: contract,
		Open:     open,
		High:     close + 1,
		Low:      open - 1,
		Close:    close,
		Volume:   volume,
	}
}

func TestDetectRolls(t *testing.T) {
	bars := []model.Bar{
		bar(1, "ESH3", 100, 101, 10),
		bar(2, "ESH3", 101, 102, 12),
		bar(3, "ESM3", 104, 105, 20), // roll: contract change, volume up
		bar(4, "ESM3", 105, 106, 18),
		bar(5, "ESU3", 110, 111, 5), // contract change, volume down: not a roll
	}

	rolls := DetectRolls(bars)
	require.Len(t, rolls, 1)
	assert.Equal(t, 2, rolls[0].Index)
	assert.InDelta(t, -2.0, rolls[0].Adjustment, 1e-9)
}

func TestDetectRollsUsesSymbolWithoutContract(t *testing.T) {
	bars := []model.Bar{
		{Symbol: "ESH3", Close: 10, Volume: 1},
		{Symbol: "ESM3", Open: 12, Volume: 2},
	}
	rolls := DetectRolls(bars)
	require.Len(t, rolls, 1)
	assert.InDelta(t, -2.0, rolls[0].Adjustment, 1e-9)
}

func TestApplySingleRoll(t *testing.T) {
	// Roll at index 5 with close[4]=100, open[5]=98, so adjustment +2.
	var bars []model.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, bar(i+1, "ESH3", 99, 100, int64(10+i)))
	}
	for i := 5; i < 8; i++ {
		bars = append(bars, bar(i+1, "ESM3", 98, 99, int64(100+i)))
	}

	rolls := Apply(bars)
	require.Len(t, rolls, 1)
	assert.Equal(t, 5, rolls[0].Index)
	assert.InDelta(t, 2.0, rolls[0].Adjustment, 1e-9)

	for i, b := range bars {
		require.NotNil(t, b.BackAdjusted, "bar %d", i)
		want := 0.0
		if i < 5 {
			want = 2.0
		}
		assert.InDelta(t, b.Open+want, b.BackAdjusted.Open, 1e-9, "open %d", i)
		assert.InDelta(t, b.High+want, b.BackAdjusted.High, 1e-9, "high %d", i)
		assert.InDelta(t, b.Low+want, b.BackAdjusted.Low, 1e-9, "low %d", i)
		assert.InDelta(t, b.Close+want, b.BackAdjusted.Close, 1e-9, "close %d", i)
	}
}

func TestApplyAccumulatesRolls(t *testing.T) {
	bars := []model.Bar{
		bar(1, "ESH3", 100, 100, 1),
		bar(2, "ESM3", 97, 97, 2), // +3
		bar(3, "ESM3", 97, 96, 3),
		bar(4, "ESU3", 91, 91, 4), // +5
	}

	rolls := Apply(bars)
	require.Len(t, rolls, 2)

	wantOffset := []float64{8, 5, 5, 0}
	for i, b := range bars {
		assert.InDelta(t, b.Close+wantOffset[i], b.BackAdjusted.Close, 1e-9, "bar %d", i)
		assert.Equal(t, int64(i+1), b.Volume, "volume untouched")
	}
}

func TestApplyNoRolls(t *testing.T) {
	bars := []model.Bar{
		bar(1, "ESH3", 100, 101, 1),
		bar(2, "ESH3", 101, 102, 2),
	}
	assert.Empty(t, Apply(bars))
	for _, b := range bars {
		assert.Equal(t, b.Close, b.BackAdjusted.Close)
	}
}

func TestApplyEmpty(t *testing.T) {
	assert.Empty(t, Apply(nil))
}
