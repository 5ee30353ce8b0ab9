package calculate

import "github.com/Alias1177/SignalEngine/models"

// calculateMACD returns the MACD line, signal line, histogram and the
// previous bar's histogram. It needs slow+signal closes so that two
// histogram values exist.
func calculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (models.MACDValue, bool) {
	if fastPeriod <= 0 || slowPeriod <= fastPeriod || signalPeriod <= 0 {
		return models.MACDValue{}, false
	}
	if len(closes) < slowPeriod+signalPeriod {
		return models.MACDValue{}, false
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// Align both EMAs on the slow series, which starts later
	offset := slowPeriod - fastPeriod
	macdLine := make([]float64, len(slow))
	for i := range slow {
		macdLine[i] = fast[i+offset] - slow[i]
	}

	signal := emaSeries(macdLine, signalPeriod)
	if len(signal) < 2 {
		return models.MACDValue{}, false
	}

	last := len(macdLine) - 1
	sigLast := len(signal) - 1

	return models.MACDValue{
		Line:          macdLine[last],
		Signal:        signal[sigLast],
		Histogram:     macdLine[last] - signal[sigLast],
		PrevHistogram: macdLine[last-1] - signal[sigLast-1],
	}, true
}
