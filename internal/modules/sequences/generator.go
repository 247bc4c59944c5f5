// Package sequences generates monotone grid-level sequences: quadratic
// progressions whose absolute increments grow while the relative
// increments shrink, used to lay out buy levels below a reference price.
package sequences

import "fmt"

// Point is one sequence element with the increment that produced it.
type Point struct {
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

// Generate returns a quadratic sequence of n values from start to end.
// When firstDelta is non-nil it pins a1 = start + firstDelta and the curve
// is solved through (0, start), (1, a1) and (n-1, end); otherwise the
// natural quadratic scaling start + (end-start)*t² is used.
func Generate(n int, start, end float64, firstDelta *float64) ([]float64, error) {
	if n < 3 {
		return nil, fmt.Errorf("sequence length must be at least 3, got %d", n)
	}

	sequence := make([]float64, n)

	if firstDelta == nil {
		for i := 0; i < n; i++ {
			t := float64(i) / float64(n-1)
			sequence[i] = start + (end-start)*t*t
		}
	} else {
		// Quadratic f(i) = a*i² + b*i + c through the three constraints:
		// f(0) = start, f(1) = start + firstDelta, f(n-1) = end.
		c := start
		denominator := float64((n - 1) * (n - 2))
		a := (end - start - *firstDelta*float64(n-1)) / denominator
		b := *firstDelta - a

		for i := 0; i < n; i++ {
			fi := float64(i)
			sequence[i] = a*fi*fi + b*fi + c
		}
	}

	// Pin the endpoints exactly against floating point drift.
	sequence[0] = start
	sequence[n-1] = end
	if firstDelta != nil {
		sequence[1] = start + *firstDelta
	}

	return sequence, nil
}

// At returns the value and increment at one index of the sequence.
// The first element's delta is 0.
func At(n int, start, end float64, firstDelta *float64, index int) (*Point, error) {
	if index < 0 || index >= n {
		return nil, fmt.Errorf("index %d is out of bounds for sequence of length %d", index, n)
	}

	sequence, err := Generate(n, start, end, firstDelta)
	if err != nil {
		return nil, err
	}

	point := &Point{Value: sequence[index]}
	if index > 0 {
		point.Delta = sequence[index] - sequence[index-1]
	}
	return point, nil
}
