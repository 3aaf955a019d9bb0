package forecast

import (
	"errors"
	"math"
	"time"
)

// Model constants.
const (
	// MinDataPoints is the smallest usable temperature history.
	MinDataPoints = 5

	// smoothingWindow is the trailing moving-average width.
	smoothingWindow = 3

	// trendEpsilon is the slope magnitude below which the trend reads stable.
	trendEpsilon = 0.1

	// confidenceFloor and confidenceCeil bound the reported confidence.
	confidenceFloor = 0.1
	confidenceCeil  = 0.95

	// Method names the algorithm in model metadata.
	Method = "linear_regression_with_smoothing"
)

// ErrInsufficientData is returned when the history is too short to fit.
var ErrInsufficientData = errors.New("forecast: insufficient data")

// Trend labels the fitted slope direction.
type Trend string

// Trend values.
const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Prediction is a short-horizon temperature forecast.
type Prediction struct {
	// PredictedTemperature is rounded to one decimal place.
	PredictedTemperature float64 `json:"predicted_temperature"`

	// Confidence is 1 - stddev/10 over the raw values, clamped to
	// [0.1, 0.95] and rounded to two decimal places.
	Confidence float64 `json:"confidence"`

	Trend Trend `json:"trend"`

	// PredictionFor is the wall-clock time the forecast targets.
	PredictionFor time.Time `json:"prediction_for"`
}

// ModelInfo describes the fit backing a Prediction.
type ModelInfo struct {
	DataPointsUsed int `json:"data_points_used"`

	// Slope is the fitted slope rounded to three decimal places.
	Slope float64 `json:"slope"`

	Method string `json:"method"`
}

// Predict fits a linear model to a chronological temperature series and
// extrapolates hoursAhead hours past its end.
//
// The series is smoothed with a trailing moving average (window 3, head
// entries average whatever is available) before the fit; confidence is
// derived from the spread of the raw values. Each history index is
// treated as one hour, so the prediction is evaluated at index
// len(values) + hoursAhead - 1.
//
// Parameters:
//   - values: Chronological temperature values, oldest first
//   - hoursAhead: Forecast horizon in hours (1 or more)
//   - now: Reference time for PredictionFor
//
// Returns:
//   - Prediction: Forecast with confidence and trend
//   - ModelInfo: Fit metadata
//   - error: ErrInsufficientData when fewer than MinDataPoints values
func Predict(values []float64, hoursAhead int, now time.Time) (Prediction, ModelInfo, error) {
	if len(values) < MinDataPoints {
		return Prediction{}, ModelInfo{}, ErrInsufficientData
	}
	if hoursAhead < 1 {
		hoursAhead = 1
	}

	smoothed := movingAverage(values, smoothingWindow)
	slope, intercept := linearRegression(smoothed)

	nextIndex := float64(len(values) + hoursAhead - 1)
	predicted := slope*nextIndex + intercept

	confidence := 1 - stdDev(values)/10
	confidence = math.Max(confidenceFloor, math.Min(confidenceCeil, confidence))

	trend := TrendStable
	switch {
	case slope > trendEpsilon:
		trend = TrendIncreasing
	case slope < -trendEpsilon:
		trend = TrendDecreasing
	}

	p := Prediction{
		PredictedTemperature: roundTo(predicted, 1),
		Confidence:           roundTo(confidence, 2),
		Trend:                trend,
		PredictionFor:        now.Add(time.Duration(hoursAhead) * time.Hour),
	}
	info := ModelInfo{
		DataPointsUsed: len(values),
		Slope:          roundTo(slope, 3),
		Method:         Method,
	}
	return p, info, nil
}

// movingAverage smooths a series with a trailing window. The first
// window-1 entries average over the shorter available prefix.
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, v := range values[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-start)
	}
	return out
}

// linearRegression fits y = slope*x + intercept with x = 0..n-1.
func linearRegression(y []float64) (slope, intercept float64) {
	n := float64(len(y))

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	slope = (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / n)
}

// roundTo rounds half away from zero at the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
