package waveform

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	apperrors "platereport/internal/errors"
)

const (
	// minPeaks is the fewest contractions and relaxations that still give
	// one fully bounded twitch with a following contraction
	minPeaks = 3

	// prominenceFraction of the trace's full range a peak must stand out by
	prominenceFraction = 1.0 / 6

	// minPeakSeparation in microseconds, i.e. at most 6.6 Hz pacing
	minPeakSeparation int64 = 150_000
)

// findExtrema returns indices of prominent local maxima of v, at least
// minSeparation apart in time, in ascending order
func findExtrema(times []int64, v []float64, minProminence float64, minSeparation int64) []int {
	var candidates []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] > v[i-1] && v[i] >= v[i+1] {
			// extend across a flat top so the plateau counts once
			j := i
			for j+1 < len(v) && v[j+1] == v[i] {
				j++
			}
			if j+1 < len(v) && v[j+1] < v[i] {
				candidates = append(candidates, i)
			}
			i = j
		}
	}

	var prominent []int
	for _, i := range candidates {
		if prominence(v, i) >= minProminence {
			prominent = append(prominent, i)
		}
	}

	// tallest first, dropping anything too close to an already kept peak
	byHeight := append([]int(nil), prominent...)
	sort.SliceStable(byHeight, func(a, b int) bool { return v[byHeight[a]] > v[byHeight[b]] })
	var kept []int
	for _, i := range byHeight {
		ok := true
		for _, k := range kept {
			d := times[i] - times[k]
			if d < 0 {
				d = -d
			}
			if d < minSeparation {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, i)
		}
	}
	sort.Ints(kept)
	return kept
}

// prominence is the height of v[i] above the higher of the two lowest
// points reached before meeting a taller sample on either side
func prominence(v []float64, i int) float64 {
	leftMin := v[i]
	for j := i - 1; j >= 0 && v[j] <= v[i]; j-- {
		if v[j] < leftMin {
			leftMin = v[j]
		}
	}
	rightMin := v[i]
	for j := i + 1; j < len(v) && v[j] <= v[i]; j++ {
		if v[j] < rightMin {
			rightMin = v[j]
		}
	}
	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return v[i] - base
}

// detectPeaksAndValleys finds contractions (maxima) and relaxations
// (minima) and checks that they alternate
func detectPeaksAndValleys(times []int64, v []float64) (peaks, valleys []int, err error) {
	if len(v) < 3 {
		return nil, nil, apperrors.ErrTooFewPeaks
	}
	span := floats.Max(v) - floats.Min(v)
	if span == 0 {
		return nil, nil, apperrors.ErrTooFewPeaks
	}
	minProminence := span * prominenceFraction

	peaks = findExtrema(times, v, minProminence, minPeakSeparation)

	inverted := make([]float64, len(v))
	floats.ScaleTo(inverted, -1, v)
	valleys = findExtrema(times, inverted, minProminence, minPeakSeparation)

	if len(peaks) < minPeaks || len(valleys) < minPeaks {
		return peaks, valleys, apperrors.ErrTooFewPeaks
	}
	if err := checkAlternation(peaks, valleys); err != nil {
		return peaks, valleys, err
	}
	return peaks, valleys, nil
}

// checkAlternation walks both index lists in order and fails on two
// events of the same kind with nothing of the other kind between them
func checkAlternation(peaks, valleys []int) error {
	p, q := 0, 0
	lastWasPeak, started := false, false
	for p < len(peaks) || q < len(valleys) {
		isPeak := q >= len(valleys) || (p < len(peaks) && peaks[p] < valleys[q])
		if started && isPeak == lastWasPeak {
			if isPeak {
				return apperrors.ErrTwoPeaksInARow
			}
			return apperrors.ErrTwoValleysInARow
		}
		if isPeak {
			p++
		} else {
			q++
		}
		lastWasPeak, started = isPeak, true
	}
	return nil
}
