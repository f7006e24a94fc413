// Package adjust builds a back-adjusted continuous futures series by removing
// the price jump at each contract roll.
//
// A roll is detected at index i when the contract changes from i-1 and volume
// rises. Its adjustment is close[i-1] - open[i]. Every bar before a roll has
// that adjustment added to its prices, so the most recent contract keeps its
// real prices and older history is shifted onto it.
package adjust

import "github.com/rickgao/data-ngin/internal/model"

// Roll is a detected contract change.
type Roll struct {
	Index      int     // First bar of the new contract
	Adjustment float64 // close[Index-1] - open[Index]
}

// DetectRolls scans time-sorted bars for contract rolls.
func DetectRolls(bars []model.Bar) []Roll {
	var rolls []Roll
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1], bars[i]
		if cur.ContractKey() == prev.ContractKey() || cur.Volume <= prev.Volume {
			continue
		}
		rolls = append(rolls, Roll{Index: i, Adjustment: prev.Close - cur.Open})
	}
	return rolls
}

// Apply sets BackAdjusted on every bar and returns the rolls it used. Only
// BackAdjusted is mutated.
func Apply(bars []model.Bar) []Roll {
	rolls := DetectRolls(bars)

	// Suffix sum: offset[j] = sum of adjustments for rolls with Index > j.
	offset := 0.0
	r := len(rolls) - 1
	for j := len(bars) - 1; j >= 0; j-- {
		for r >= 0 && rolls[r].Index > j {
			offset += rolls[r].Adjustment
			r--
		}
		b := &bars[j]
		b.BackAdjusted = &model.AdjustedPrices{
			Open:  b.Open + offset,
			High:  b.High + offset,
			Low:   b.Low + offset,
			Close: b.Close + offset,
		}
	}
	return rolls
}
