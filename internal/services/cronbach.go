package services

// CronbachAlpha estimates internal consistency of a [results][items]
// contribution matrix. Variances are population variances, so perfectly
// correlated items give 1. Degenerate input (fewer than two items, ragged
// rows, zero total variance) gives 0; the result is clamped to [0,1].
func CronbachAlpha(matrix [][]float64) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}
	k := len(matrix[0])
	if k < 2 {
		return 0
	}
	columns := make([][]float64, k)
	totals := make([]float64, n)
	for i, row := range matrix {
		if len(row) != k {
			return 0
		}
		for j, v := range row {
			columns[j] = append(columns[j], v)
			totals[i] += v
		}
	}
	totalVar := popVariance(totals)
	if totalVar == 0 {
		return 0
	}
	var itemVars float64
	for _, col := range columns {
		itemVars += popVariance(col)
	}
	kf := float64(k)
	alpha := kf / (kf - 1) * (1 - itemVars/totalVar)
	switch {
	case alpha < 0:
		return 0
	case alpha > 1:
		return 1
	}
	return alpha
}

func popVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}
