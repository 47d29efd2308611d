package waveform

import (
	"sort"

	"platereport/pkg/contracts/domain"
)

var widthKinds = []domain.MetricKind{
	domain.MetricWidth10,
	domain.MetricWidth25,
	domain.MetricWidth50,
	domain.MetricWidth75,
	domain.MetricWidth90,
}

// computeTwitches measures every peak that has a relaxation on both sides
// and a following contraction
func computeTwitches(times []int64, v []float64, peaks, valleys []int) []domain.Twitch {
	seconds := func(i int) float64 { return float64(times[i]) / domain.MicrosecondsPerSecond }

	var twitches []domain.Twitch
	for n := 0; n < len(peaks)-1; n++ {
		p := peaks[n]
		next := peaks[n+1]

		// valleys are sorted; locate the last one before p and the first after
		k := sort.SearchInts(valleys, p)
		if k == 0 || k == len(valleys) {
			continue
		}
		before, after := valleys[k-1], valleys[k]
		if after > next {
			continue
		}

		base := (v[before] + v[after]) / 2
		amplitude := v[p] - base

		tw := domain.Twitch{
			Timepoint:   times[p],
			PeakIndex:   p,
			ValleyIndex: after,
		}
		period := seconds(next) - seconds(p)
		tw.Values[domain.MetricTimepoint] = seconds(p)
		tw.Values[domain.MetricPeriod] = period
		if period > 0 {
			tw.Values[domain.MetricFrequency] = 1 / period
		}
		tw.Values[domain.MetricAmplitude] = amplitude

		for _, kind := range widthKinds {
			pct, _ := kind.WidthPercent()
			level := v[p] - amplitude*float64(pct)/100
			rise := crossing(times, v, p, before, level)
			fall := crossing(times, v, p, after, level)
			tw.Values[kind] = (fall - rise) / domain.MicrosecondsPerSecond
		}

		tw.Values[domain.MetricAUC] = areaAboveBaseline(times, v, before, after)
		twitches = append(twitches, tw)
	}
	return twitches
}

// crossing walks from the peak toward limit and returns the interpolated
// time in microseconds where v first drops to level. The limit's time is
// returned when the level is never reached.
func crossing(times []int64, v []float64, peak, limit int, level float64) float64 {
	step := 1
	if limit < peak {
		step = -1
	}
	for i := peak; i != limit; i += step {
		j := i + step
		if v[j] <= level {
			if v[i] == v[j] {
				return float64(times[j])
			}
			frac := (v[i] - level) / (v[i] - v[j])
			return float64(times[i]) + frac*float64(times[j]-times[i])
		}
	}
	return float64(times[limit])
}

// areaAboveBaseline integrates, in value-seconds, the part of v above the
// straight line joining the two bounding relaxations
func areaAboveBaseline(times []int64, v []float64, from, to int) float64 {
	if to <= from {
		return 0
	}
	t0, t1 := float64(times[from]), float64(times[to])
	baseline := func(i int) float64 {
		if t1 == t0 {
			return v[from]
		}
		return v[from] + (v[to]-v[from])*(float64(times[i])-t0)/(t1-t0)
	}
	height := func(i int) float64 {
		h := v[i] - baseline(i)
		if h < 0 {
			return 0
		}
		return h
	}

	var area float64
	for i := from; i < to; i++ {
		dt := float64(times[i+1]-times[i]) / domain.MicrosecondsPerSecond
		area += (height(i) + height(i+1)) / 2 * dt
	}
	return area
}
