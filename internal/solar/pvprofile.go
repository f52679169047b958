package solar

import (
	"math"
	"time"
)

// PVProfile holds an hourly generation shape derived from observed PV power.
type PVProfile struct {
	// HourlyFactor holds the normalized mean output for each hour [0-23].
	// Peak hour = 1.0, other hours scaled relative to peak.
	HourlyFactor [24]float64
	// PeakHour is the hour with the highest average generation.
	PeakHour int
	// PeakW is the mean power (W) at the peak hour.
	PeakW float64
}

// BuildProfile averages power per hour of day. Negative readings count as
// zero. An empty series yields a flat zero profile.
func BuildProfile(index []time.Time, power []float64) PVProfile {
	var hourSum [24]float64
	var hourCount [24]int

	for i, ts := range index {
		if i >= len(power) || math.IsNaN(power[i]) {
			continue
		}
		h := ts.Hour()
		hourSum[h] += math.Max(0, power[i])
		hourCount[h]++
	}

	var profile PVProfile
	var maxAvg float64
	for h := 0; h < 24; h++ {
		if hourCount[h] > 0 {
			avg := hourSum[h] / float64(hourCount[h])
			profile.HourlyFactor[h] = avg
			if avg > maxAvg {
				maxAvg = avg
				profile.PeakHour = h
			}
		}
	}

	// Normalize to peak = 1.0
	if maxAvg > 0 {
		for h := 0; h < 24; h++ {
			profile.HourlyFactor[h] /= maxAvg
		}
	}
	profile.PeakW = maxAvg
	return profile
}

// PowerAt returns the profile power in watts for the given fractional hour.
func (p *PVProfile) PowerAt(hour float64) float64 {
	factor := interpolateProfile(p.HourlyFactor, hour)
	if factor < 0 {
		return 0
	}
	return factor * p.PeakW
}

// At returns the profile power at t.
func (p *PVProfile) At(t time.Time) float64 {
	return p.PowerAt(float64(t.Hour()) + float64(t.Minute())/60)
}

// interpolateProfile returns linearly interpolated factor for a fractional hour.
func interpolateProfile(factors [24]float64, hour float64) float64 {
	// Wrap to [0, 24)
	for hour < 0 {
		hour += 24
	}
	for hour >= 24 {
		hour -= 24
	}

	lo := int(math.Floor(hour)) % 24
	hi := (lo + 1) % 24
	frac := hour - math.Floor(hour)

	return factors[lo]*(1-frac) + factors[hi]*frac
}
