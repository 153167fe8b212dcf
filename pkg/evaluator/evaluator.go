package evaluator

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
)

// Candidate is a song eligible as a parent, with its rating after smoothing
// and its share of its node's total
type Candidate struct {
	SongID int64   `json:"song_id"`
	Rating float64 `json:"rating"`
	Weight float64 `json:"weight"`
}

// Fitness is the per-node relative fitness of one generation
type Fitness map[int][]Candidate

// Songs counts candidates across all nodes
func (f Fitness) Songs() int {
	total := 0
	for _, c := range f {
		total += len(c)
	}
	return total
}

// Evaluator turns raw rating sums into relative fitness per node
type Evaluator struct {
	smoothing float64
	logger    *logrus.Logger
}

// New creates an evaluator adding smoothing to every song's rating sum
func New(smoothing float64, logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	if smoothing < 0 {
		smoothing = 0
	}
	return &Evaluator{smoothing: smoothing, logger: logger}
}

// Evaluate groups ratings by hosting node. Each song's rating is its sum plus
// the smoothing constant, floored at zero; its weight is the rating over the
// node total. A node whose total is zero gets uniform weights. Candidates are
// ordered by song id. Repeated tuples for the same song are summed.
func (e *Evaluator) Evaluate(ratings []types.Rating) Fitness {
	type key struct {
		node int
		song int64
	}
	sums := make(map[key]int64)
	for _, r := range ratings {
		sums[key{r.NodeID, r.SongID}] += r.RatingSum
	}

	fitness := make(Fitness)
	for k, sum := range sums {
		rating := float64(sum) + e.smoothing
		if rating < 0 {
			rating = 0
		}
		fitness[k.node] = append(fitness[k.node], Candidate{SongID: k.song, Rating: rating})
	}

	for node, candidates := range fitness {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].SongID < candidates[j].SongID })

		total := 0.0
		for _, c := range candidates {
			total += c.Rating
		}

		if total <= 0 {
			e.logger.WithFields(logrus.Fields{
				"node":  node,
				"songs": len(candidates),
			}).Warn("Node has zero total fitness, using uniform weights")
			for i := range candidates {
				candidates[i].Weight = 1 / float64(len(candidates))
			}
			continue
		}

		for i := range candidates {
			candidates[i].Weight = candidates[i].Rating / total
		}
	}

	e.logger.WithFields(logrus.Fields{
		"nodes": len(fitness),
		"songs": fitness.Songs(),
	}).Debug("Computed relative fitness")

	return fitness
}
