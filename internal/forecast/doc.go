// Package forecast produces short-horizon temperature predictions.
//
// The model is deliberately small: a trailing moving average to knock
// down sensor noise, an ordinary least squares fit over the smoothed
// series, and linear extrapolation one index per hour past the end.
// Confidence reflects the spread of the raw series, not fit quality.
package forecast
