// Package liveness decides which devices have gone quiet.
//
// A sweep derives the active set from stored sensor readings: devices
// with at least one reading inside the staleness window (two minutes
// by default) are brought online, everything else is taken offline.
// Sweeps run from an internal ticker, from the HTTP trigger, or both;
// a single-flight guard keeps overlapping runs from racing.
package liveness
