package reproduction

import (
	"errors"
	"math/rand"

	"github.com/ishanwen-byte/songevolve-go/pkg/evaluator"
)

// ErrNoCandidates is returned when a selection is asked to pick from nothing
var ErrNoCandidates = errors.New("no candidates to select from")

// WeightedChoice picks an index by cumulative-weight roulette. Weights need
// not sum to one; a non-positive total selects uniformly.
func WeightedChoice(rng *rand.Rand, candidates []evaluator.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, ErrNoCandidates
	}

	total := 0.0
	for _, c := range candidates {
		total += c.Weight
	}
	if total <= 0 {
		return rng.Intn(len(candidates)), nil
	}

	return roulette(candidates, rng.Float64()*total), nil
}

// roulette returns the first index whose cumulative weight exceeds roll. When
// rounding keeps the running sum below roll the last candidate wins.
func roulette(candidates []evaluator.Candidate, roll float64) int {
	cumulative := 0.0
	for i, c := range candidates {
		cumulative += c.Weight
		if roll < cumulative {
			return i
		}
	}
	return len(candidates) - 1
}

// PickParents draws two distinct parents without replacement: the first by
// roulette over all candidates, the second over the rest after removing the
// first. A single candidate is paired with itself.
func PickParents(rng *rand.Rand, candidates []evaluator.Candidate) (evaluator.Candidate, evaluator.Candidate, error) {
	first, err := WeightedChoice(rng, candidates)
	if err != nil {
		return evaluator.Candidate{}, evaluator.Candidate{}, err
	}
	if len(candidates) == 1 {
		return candidates[0], candidates[0], nil
	}

	rest := make([]evaluator.Candidate, 0, len(candidates)-1)
	rest = append(rest, candidates[:first]...)
	rest = append(rest, candidates[first+1:]...)

	second, err := WeightedChoice(rng, rest)
	if err != nil {
		return evaluator.Candidate{}, evaluator.Candidate{}, err
	}
	return candidates[first], rest[second], nil
}
