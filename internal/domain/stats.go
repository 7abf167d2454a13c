package domain

// Stateless numeric primitives shared by the correlation engine and the
// comparison queries. Empty input yields nil, never zero and never an error.

// Mean returns the arithmetic mean of samples, or nil for empty input.
func Mean(samples []float64) *float64 {
	if len(samples) == 0 {
		return nil
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	m := sum / float64(len(samples))
	return &m
}

// Min returns the smallest sample, or nil for empty input.
func Min(samples []float64) *float64 {
	if len(samples) == 0 {
		return nil
	}
	m := samples[0]
	for _, v := range samples[1:] {
		if v < m {
			m = v
		}
	}
	return &m
}

// Max returns the largest sample, or nil for empty input.
func Max(samples []float64) *float64 {
	if len(samples) == 0 {
		return nil
	}
	m := samples[0]
	for _, v := range samples[1:] {
		if v > m {
			m = v
		}
	}
	return &m
}

// PercentChange returns (post-pre)/pre*100. A nil or zero pre, or a nil post,
// short-circuits to nil rather than dividing by zero.
func PercentChange(pre, post *float64) *float64 {
	if pre == nil || post == nil || *pre == 0 {
		return nil
	}
	c := (*post - *pre) / *pre * 100
	return &c
}
