package feature

import "math"

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		// Hamming: 0.54 - 0.46*cos(2*pi*n/(N-1))
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Frames splits samples into overlapping frames of windowSize samples,
// advancing by hopSize. The trailing partial frame is dropped.
func Frames(samples []float64, windowSize, hopSize int) [][]float64 {
	if len(samples) < windowSize || windowSize <= 0 || hopSize <= 0 {
		return nil
	}
	n := (len(samples)-windowSize)/hopSize + 1
	frames := make([][]float64, 0, n)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		frame := make([]float64, windowSize)
		copy(frame, samples[start:start+windowSize])
		frames = append(frames, frame)
	}
	return frames
}
