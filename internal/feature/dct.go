package feature

import "math"

// dctMatrix returns the numCoeffs x numInputs orthonormal DCT-II matrix used
// to compress log mel energies into cepstral coefficients.
func dctMatrix(numCoeffs, numInputs int) [][]float64 {
	m := make([][]float64, numCoeffs)
	scale0 := math.Sqrt(1.0 / float64(numInputs))
	scale := math.Sqrt(2.0 / float64(numInputs))
	for k := 0; k < numCoeffs; k++ {
		row := make([]float64, numInputs)
		s := scale
		if k == 0 {
			s = scale0
		}
		for n := 0; n < numInputs; n++ {
			row[n] = s * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numInputs))
		}
		m[k] = row
	}
	return m
}

// applyDCT multiplies the DCT matrix by the log mel energy vector.
func applyDCT(m [][]float64, logMel []float64) []float64 {
	out := make([]float64, len(m))
	for k, row := range m {
		var sum float64
		for n, w := range row {
			sum += w * logMel[n]
		}
		out[k] = sum
	}
	return out
}
