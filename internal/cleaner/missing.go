package cleaner

import (
	"sort"

	"github.com/rickgao/data-ngin/internal/model"
)

// Columns numeric fills operate on.
var numericColumns = []string{
	model.ColOpen,
	model.ColHigh,
	model.ColLow,
	model.ColClose,
	model.ColVolume,
}

// HandleMissingData applies every enabled strategy in order: drop_rows,
// forward_fill, backward_fill, interpolate, zero_fill, mean_fill,
// median_fill, custom_fill. Only nil cells are touched. Rows are modified in
// place; the returned slice may be shorter when drop_rows is enabled.
func (c *Cleaner) HandleMissingData(rows []model.Record) []model.Record {
	md := c.cfg.MissingData

	if md.DropRows {
		before := len(rows)
		rows = dropRows(rows)
		if dropped := before - len(rows); dropped > 0 {
			c.logger.Info("dropped rows with missing values", "dropped", dropped, "remaining", len(rows))
		}
	}
	if md.ForwardFill {
		forwardFill(rows, model.RequiredColumns)
	}
	if md.BackwardFill {
		backwardFill(rows, model.RequiredColumns)
	}
	if md.Interpolate {
		interpolate(rows, numericColumns)
	}
	if md.ZeroFill {
		fillConstant(rows, numericColumns, 0.0)
	}
	if md.MeanFill {
		fillStat(rows, numericColumns, mean)
	}
	if md.MedianFill {
		fillStat(rows, numericColumns, median)
	}
	if md.CustomFill {
		fillConstant(rows, numericColumns, md.CustomValue)
	}
	return rows
}

func dropRows(rows []model.Record) []model.Record {
	out := rows[:0:0]
	for _, r := range rows {
		if hasNull(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasNull(r model.Record) bool {
	for _, col := range model.RequiredColumns {
		if r[col] == nil {
			return true
		}
	}
	return false
}

func forwardFill(rows []model.Record, cols []string) {
	for _, col := range cols {
		var last any
		for _, r := range rows {
			if r[col] == nil {
				if last != nil {
					r[col] = last
				}
				continue
			}
			last = r[col]
		}
	}
}

func backwardFill(rows []model.Record, cols []string) {
	for _, col := range cols {
		var next any
		for i := len(rows) - 1; i >= 0; i-- {
			if rows[i][col] == nil {
				if next != nil {
					rows[i][col] = next
				}
				continue
			}
			next = rows[i][col]
		}
	}
}

// interpolate fills interior nulls linearly by position. Leading nulls stay
// null; trailing nulls take the last valid value.
func interpolate(rows []model.Record, cols []string) {
	for _, col := range cols {
		prev := -1
		for i, r := range rows {
			v, err := toFloat(r[col])
			if err != nil {
				continue
			}
			if prev >= 0 && i-prev > 1 {
				pv, _ := toFloat(rows[prev][col])
				step := (v - pv) / float64(i-prev)
				for k := prev + 1; k < i; k++ {
					if rows[k][col] == nil {
						rows[k][col] = pv + step*float64(k-prev)
					}
				}
			}
			prev = i
		}
		if prev < 0 {
			continue
		}
		last := rows[prev][col]
		for k := prev + 1; k < len(rows); k++ {
			if rows[k][col] == nil {
				rows[k][col] = last
			}
		}
	}
}

func fillConstant(rows []model.Record, cols []string, v float64) {
	for _, col := range cols {
		for _, r := range rows {
			if r[col] == nil {
				r[col] = v
			}
		}
	}
}

// fillStat fills nulls with a statistic of the column's numeric values. A
// column with no numeric values is left alone.
func fillStat(rows []model.Record, cols []string, stat func([]float64) float64) {
	for _, col := range cols {
		var vals []float64
		for _, r := range rows {
			if f, err := toFloat(r[col]); err == nil {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			continue
		}
		fill := stat(vals)
		for _, r := range rows {
			if r[col] == nil {
				r[col] = fill
			}
		}
	}
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
