package crossover

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

// Engine recombines and mutates genomes. It is not safe for concurrent use:
// the underlying rand.Rand is shared by every call.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine drawing from rng. A nil rng falls back to a
// time-seeded source.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// Crossover produces one child from two parents. Each parent recombines its own
// alleles per slot using its own mutation rate, then a coin decides which
// parent's product becomes the child's left allele. The child has no song id.
func (e *Engine) Crossover(father, mother *genome.Genome) *genome.Genome {
	fatherRate := father.MutationRate()
	motherRate := mother.MutationRate()

	child := &genome.Genome{}
	for _, slot := range genome.Slots() {
		f := father.Chromosome(slot)
		m := mother.Chromosome(slot)

		crossedFather := e.CrossSingle(f.Left, f.Right, fatherRate)
		crossedMother := e.CrossSingle(m.Left, m.Right, motherRate)

		if e.rng.Intn(2) == 0 {
			child.SetChromosome(slot, genome.NewChromosome(crossedFather, crossedMother))
		} else {
			child.SetChromosome(slot, genome.NewChromosome(crossedMother, crossedFather))
		}
	}
	return child
}

// CrossSingle recombines two alleles at 1-4 relative crossover points and
// mutates the result. Points are fractions of each allele's own length, so
// alleles of different lengths still line up.
func (e *Engine) CrossSingle(first, second genome.Bits, rate float64) genome.Bits {
	k := constants.MinCrossoverPoints + e.rng.Intn(constants.MaxCrossoverPoints-constants.MinCrossoverPoints+1)
	points := make([]float64, k)
	for i := range points {
		points[i] = e.rng.Float64()
	}
	sort.Float64s(points)

	alleles := [2]genome.Bits{first, second}
	active := e.rng.Intn(2)
	pos := [2]int{}

	child := make(genome.Bits, 0, max(len(first), len(second)))
	for _, p := range points {
		cut := [2]int{scale(p, len(first)), scale(p, len(second))}
		if cut[active] > pos[active] {
			child = append(child, alleles[active][pos[active]:cut[active]]...)
		}
		pos[0] = max(pos[0], cut[0])
		pos[1] = max(pos[1], cut[1])
		active = 1 - active
	}
	if pos[active] < len(alleles[active]) {
		child = append(child, alleles[active][pos[active]:]...)
	}

	return e.mutate(child, rate, len(first)+len(second))
}

// ApplyMutation returns a mutated copy of bits. Substitution is per bit with
// probability rate*0.8; at most one insertion and one deletion happen, each
// with probability rate*0.1. The input is not modified.
func (e *Engine) ApplyMutation(bits genome.Bits, rate float64) genome.Bits {
	return e.mutate(bits.Clone(), rate, -1)
}

// mutate works in place on bits. limit caps the length an insertion may reach;
// a negative limit disables the cap.
func (e *Engine) mutate(bits genome.Bits, rate float64, limit int) genome.Bits {
	if bits == nil {
		bits = genome.Bits{}
	}

	substitution := rate * constants.SubstitutionShare
	for i := range bits {
		if e.rng.Float64() < substitution {
			bits[i] ^= 1
		}
	}

	if e.rng.Float64() < rate*constants.InsertionShare && (limit < 0 || len(bits) < limit) {
		at := e.rng.Intn(len(bits) + 1)
		bit := byte(e.rng.Intn(2))
		bits = append(bits, 0)
		copy(bits[at+1:], bits[at:])
		bits[at] = bit
	}

	if e.rng.Float64() < rate*constants.DeletionShare && len(bits) > 0 {
		at := e.rng.Intn(len(bits))
		bits = append(bits[:at], bits[at+1:]...)
	}

	return bits
}

func scale(p float64, length int) int {
	idx := int(math.Round(p * float64(length)))
	if idx > length {
		return length
	}
	return idx
}
