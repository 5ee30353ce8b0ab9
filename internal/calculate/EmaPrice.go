package calculate

// emaSeries returns the exponential moving average of prices seeded with
// the SMA of the first period values. The result starts at index period-1
// of the input, so it has len(prices)-period+1 entries, or none when the
// input is too short.
func emaSeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}

	out := make([]float64, 0, len(prices)-period+1)
	ema := sum / float64(period)
	out = append(out, ema)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// smaLast returns the simple average of the last period values
func smaLast(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}
