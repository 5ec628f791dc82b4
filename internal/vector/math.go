package vector

import "math"

// Cosine returns dot(a, b) / (|a| * |b|). Vectors of different length, empty
// vectors and zero-magnitude vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// Norm is the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales v in place to unit length. Zero vectors are left as is.
func Normalize(v []float32) {
	n := float32(Norm(v))
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

// Argmax returns the index of the largest value, or -1 for an empty slice.
func Argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
