package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

// WeightSet maps a domain key to its share of the overall score.
// Weights are fractions; a valid set sums to 1.0 (±0.001 tolerance).
type WeightSet map[string]float64

// WeightsFromCatalog returns the weights declared on the catalog's domains.
func WeightsFromCatalog(c *catalog.Catalog) WeightSet {
	return WeightSet(c.Weights())
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	var sum float64
	for _, k := range w.keys() {
		sum += w[k]
	}
	return sum
}

// Validate checks that weights sum to 1.0 and each is a fraction in [0,1].
func (w WeightSet) Validate() error {
	if err := w.CheckFractions(); err != nil {
		return err
	}
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	return nil
}

// CheckFractions rejects any weight that is not a finite fraction in [0,1].
// Unlike Validate it does not require the sum to be 1.0.
func (w WeightSet) CheckFractions() error {
	for _, k := range w.keys() {
		v := w[k]
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return fmt.Errorf("weight for %s is not a number", k)
		case v < 0:
			return fmt.Errorf("negative weight for %s: %f", k, v)
		case v > 1:
			return fmt.Errorf("weight for %s is %f, weights are fractions not percentages", k, v)
		}
	}
	return nil
}

// Normalized returns a copy divided by the actual sum. A zero sum is returned unchanged.
func (w WeightSet) Normalized() WeightSet {
	sum := w.Sum()
	out := make(WeightSet, len(w))
	for k, v := range w {
		if sum == 0 {
			out[k] = v
			continue
		}
		out[k] = v / sum
	}
	return out
}

// Missing lists catalog domains that have no weight. They contribute 0 to the
// overall score.
func (w WeightSet) Missing(c *catalog.Catalog) []string {
	var missing []string
	for _, dk := range c.DomainKeys() {
		if _, ok := w[dk]; !ok {
			missing = append(missing, dk)
		}
	}
	return missing
}

func (w WeightSet) keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
