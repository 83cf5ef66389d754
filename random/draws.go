package random

import (
	"fmt"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// Bernoulli writes a {0,1} draw for each probability in probs into dst.
// dst and probs may alias.
func Bernoulli(k Key, dst, probs []float64) error {
	if len(dst) != len(probs) {
		return fmt.Errorf("bernoulli: destination length %d does not match %d probabilities", len(dst), len(probs))
	}
	rng := k.Rand()
	for i, p := range probs {
		if rng.Float64() < p {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return nil
}

// Normal fills dst with draws from N(mean, std²).
func Normal(k Key, dst []float64, mean, std float64) {
	rng := k.Rand()
	for i := range dst {
		dst[i] = rng.NormFloat64()*std + mean
	}
}

// Perm returns a random permutation of [0,n).
func Perm(k Key, n int) []int {
	if n <= 0 {
		return []int{}
	}
	idxs := make([]int, n)
	sampleuv.WithoutReplacement(idxs, n, k.Source())
	return idxs
}
