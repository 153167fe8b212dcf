package genome

import (
	"math"
	"math/rand"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
)

// Slot identifies one of the ten chromosome pairs of a genome
type Slot int

const (
	Notes Slot = iota
	Effects
	SineCodon
	SquareCodon
	CustomCodon
	LowPassCodon
	HighPassCodon
	ReverbCodon
	EchoCodon
	MutationRate
)

// SlotCount is the number of chromosome pairs in every genome
const SlotCount = constants.ChromosomeSlots

var slotNames = [SlotCount]string{
	"notes",
	"effects",
	"sine_codon",
	"square_codon",
	"custom_codon",
	"low_pass_codon",
	"high_pass_codon",
	"reverb_codon",
	"echo_codon",
	"mutation_rate",
}

func (s Slot) String() string {
	if s < 0 || int(s) >= SlotCount {
		return "unknown"
	}
	return slotNames[s]
}

// Slots returns every slot in persistence order
func Slots() []Slot {
	slots := make([]Slot, SlotCount)
	for i := range slots {
		slots[i] = Slot(i)
	}
	return slots
}

// Genome aggregates the ten named chromosome pairs of one song
type Genome struct {
	Chromosomes [SlotCount]Chromosome `json:"chromosomes"`

	// SongID is assigned by the storage layer after insertion
	SongID *int64 `json:"song_id,omitempty"`
}

// New builds a genome from chromosomes given in slot order
func New(chromosomes [SlotCount]Chromosome) *Genome {
	return &Genome{Chromosomes: chromosomes}
}

// Random creates a genome with random homozygous chromosomes. Notes and effects
// use the large range, the codon chromosomes the small range and the mutation
// rate a fixed 8-bit chromosome.
func Random(rng *rand.Rand, largeMin, largeMax, smallMin, smallMax int) *Genome {
	g := &Genome{}
	for _, slot := range Slots() {
		switch slot {
		case Notes, Effects:
			g.Chromosomes[slot] = RandomChromosome(rng, largeMin, largeMax)
		case MutationRate:
			g.Chromosomes[slot] = RandomChromosome(rng, constants.MutationRateBits, constants.MutationRateBits)
		default:
			g.Chromosomes[slot] = RandomChromosome(rng, smallMin, smallMax)
		}
	}
	return g
}

// Chromosome returns the chromosome pair held in slot
func (g *Genome) Chromosome(slot Slot) Chromosome {
	return g.Chromosomes[slot]
}

// SetChromosome replaces the chromosome pair held in slot
func (g *Genome) SetChromosome(slot Slot, c Chromosome) {
	g.Chromosomes[slot] = c
}

func (g *Genome) Notes() Chromosome         { return g.Chromosomes[Notes] }
func (g *Genome) Effects() Chromosome       { return g.Chromosomes[Effects] }
func (g *Genome) SineCodon() Chromosome     { return g.Chromosomes[SineCodon] }
func (g *Genome) SquareCodon() Chromosome   { return g.Chromosomes[SquareCodon] }
func (g *Genome) CustomCodon() Chromosome   { return g.Chromosomes[CustomCodon] }
func (g *Genome) LowPassCodon() Chromosome  { return g.Chromosomes[LowPassCodon] }
func (g *Genome) HighPassCodon() Chromosome { return g.Chromosomes[HighPassCodon] }
func (g *Genome) ReverbCodon() Chromosome   { return g.Chromosomes[ReverbCodon] }
func (g *Genome) EchoCodon() Chromosome     { return g.Chromosomes[EchoCodon] }

// Clone deep-copies all ten chromosome pairs. The song id is not copied.
func (g *Genome) Clone() *Genome {
	clone := &Genome{}
	for i, c := range g.Chromosomes {
		clone.Chromosomes[i] = c.Clone()
	}
	return clone
}

// Equal compares the chromosome pairs of two genomes, ignoring song ids
func (g *Genome) Equal(other *Genome) bool {
	if g == nil || other == nil {
		return g == other
	}
	for i := range g.Chromosomes {
		if !g.Chromosomes[i].Equal(other.Chromosomes[i]) {
			return false
		}
	}
	return true
}

// AssignSongID records the storage identity. Callers assign it exactly once.
func (g *Genome) AssignSongID(id int64) {
	g.SongID = &id
}

// ID returns the song id and whether one has been assigned
func (g *Genome) ID() (int64, bool) {
	if g.SongID == nil {
		return 0, false
	}
	return *g.SongID, true
}

// MutationRate decodes the left mutation-rate allele into [0, 0.2]
func (g *Genome) MutationRate() float64 {
	return DecodeMutationRate(g.Chromosomes[MutationRate].Left)
}

// SetMutationRate encodes rate into both mutation-rate alleles, clamped to the
// representable range.
func (g *Genome) SetMutationRate(rate float64) {
	value := math.Round(rate * constants.MutationRateScale)
	if value < 0 {
		value = 0
	}
	if value > 255 {
		value = 255
	}
	bits := ValueToBits(uint32(value), constants.MutationRateBits)
	g.Chromosomes[MutationRate] = Chromosome{Left: bits, Right: bits.Clone()}
}

// DecodeMutationRate maps an 8-bit field to value / (255 * 5)
func DecodeMutationRate(bits Bits) float64 {
	return float64(BitsToValue(bits)) / constants.MutationRateScale
}
