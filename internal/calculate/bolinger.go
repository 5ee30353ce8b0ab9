package calculate

import (
	"math"

	"github.com/Alias1177/SignalEngine/models"
)

// calculateBollingerBands returns SMA(period) ± k·stddev(period) using the
// population standard deviation
func calculateBollingerBands(closes []float64, period int, k float64) (models.BollingerValue, bool) {
	middle, ok := smaLast(closes, period)
	if !ok {
		return models.BollingerValue{}, false
	}

	var variance float64
	for _, c := range closes[len(closes)-period:] {
		variance += (c - middle) * (c - middle)
	}
	sd := math.Sqrt(variance / float64(period))

	return models.BollingerValue{
		Upper:  middle + sd*k,
		Middle: middle,
		Lower:  middle - sd*k,
	}, true
}
