package feature

import "math"

// hzToMel converts a frequency in Hz to the mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts a mel-scale value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterbank builds numFilters triangular filters spanning [0, sampleRate/2],
// spaced evenly on the mel scale. Each filter is a weight vector over the
// numBins power-spectrum bins of an nfft-point FFT.
func melFilterbank(numFilters, nfft, numBins, sampleRate int) [][]float64 {
	loMel := hzToMel(0)
	hiMel := hzToMel(float64(sampleRate) / 2.0)

	// numFilters+2 edge points: each filter rises from edge i to i+1 and
	// falls back to zero at i+2.
	edges := make([]float64, numFilters+2)
	for i := range edges {
		mel := loMel + (hiMel-loMel)*float64(i)/float64(numFilters+1)
		edges[i] = melToHz(mel)
	}

	binHz := float64(sampleRate) / float64(nfft)
	filters := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			f := float64(k) * binHz
			switch {
			case f <= left || f >= right:
				// outside the triangle
			case f < center:
				filter[k] = (f - left) / (center - left)
			default:
				filter[k] = (right - f) / (right - center)
			}
		}
		filters[m] = filter
	}
	return filters
}

// applyFilterbank maps a power spectrum through the filterbank, returning
// one energy per filter.
func applyFilterbank(filters [][]float64, power []float64) []float64 {
	out := make([]float64, len(filters))
	for m, filter := range filters {
		var sum float64
		for k, w := range filter {
			if w != 0 {
				sum += w * power[k]
			}
		}
		out[m] = sum
	}
	return out
}
