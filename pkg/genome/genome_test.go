package genome

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomChromosomeIsHomozygous(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		c := RandomChromosome(rng, 8, 16)
		assert.GreaterOrEqual(t, len(c.Left), 8)
		assert.LessOrEqual(t, len(c.Left), 16)
		assert.True(t, c.Homozygous())
		for _, bit := range c.Left {
			assert.LessOrEqual(t, bit, byte(1))
		}
	}
}

func TestRandomChromosomeRightIsIndependentCopy(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	c := RandomChromosome(rng, 4, 4)

	c.Right[0] ^= 1
	assert.False(t, c.Homozygous())
}

func TestRandomGenomeUsesConfiguredRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := Random(rng, 128, 256, 8, 16)

	for _, slot := range []Slot{Notes, Effects} {
		n := len(g.Chromosome(slot).Left)
		assert.GreaterOrEqual(t, n, 128, slot.String())
		assert.LessOrEqual(t, n, 256, slot.String())
	}
	for _, slot := range []Slot{SineCodon, SquareCodon, CustomCodon, LowPassCodon, HighPassCodon, ReverbCodon, EchoCodon} {
		n := len(g.Chromosome(slot).Left)
		assert.GreaterOrEqual(t, n, 8, slot.String())
		assert.LessOrEqual(t, n, 16, slot.String())
	}
	assert.Len(t, g.Chromosome(MutationRate).Left, 8)
	assert.Nil(t, g.SongID)
}

func TestCloneIsDeepAndDropsSongID(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	adam := Random(rng, 16, 32, 4, 8)
	adam.AssignSongID(1)

	eve := adam.Clone()
	require.True(t, adam.Equal(eve))
	assert.Nil(t, eve.SongID)

	eve.Chromosomes[Notes].Left[0] ^= 1
	assert.False(t, adam.Equal(eve))
}

func TestAssignSongID(t *testing.T) {
	g := &Genome{}
	_, ok := g.ID()
	assert.False(t, ok)

	g.AssignSongID(42)
	id, ok := g.ID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestMutationRateDecode(t *testing.T) {
	zero := make(Bits, 8)
	assert.Equal(t, 0.0, DecodeMutationRate(zero))

	ones := Bits{1, 1, 1, 1, 1, 1, 1, 1}
	assert.InDelta(t, 0.2, DecodeMutationRate(ones), 1e-12)
	assert.InDelta(t, 255.0/(255.0*5.0), DecodeMutationRate(ones), 1e-12)
}

func TestSetMutationRate(t *testing.T) {
	g := &Genome{}

	g.SetMutationRate(0.03)
	assert.InDelta(t, 0.03, g.MutationRate(), 1.0/(255*5))
	assert.True(t, g.Chromosome(MutationRate).Homozygous())

	g.SetMutationRate(5)
	assert.InDelta(t, 0.2, g.MutationRate(), 1e-12)

	g.SetMutationRate(-1)
	assert.Equal(t, 0.0, g.MutationRate())
}

func TestBitsToValue(t *testing.T) {
	assert.Equal(t, uint32(0), BitsToValue(nil))
	assert.Equal(t, uint32(1), BitsToValue(Bits{0, 0, 0, 0, 0, 0, 0, 1}))
	assert.Equal(t, uint32(128), BitsToValue(Bits{1, 0, 0, 0, 0, 0, 0, 0}))
	assert.Equal(t, uint32(255), BitsToValue(Bits{1, 1, 1, 1, 1, 1, 1, 1}))
	assert.Equal(t, Bits{1, 0, 1, 0}, ValueToBits(10, 4))
}

func TestHasPrefixAt(t *testing.T) {
	b := Bits{1, 0, 1, 1, 0}

	assert.True(t, b.HasPrefixAt(0, Bits{1, 0}))
	assert.True(t, b.HasPrefixAt(2, Bits{1, 1, 0}))
	assert.False(t, b.HasPrefixAt(3, Bits{1, 0, 0}))
	assert.False(t, b.HasPrefixAt(0, Bits{}))
	assert.False(t, b.HasPrefixAt(4, Bits{0, 1}))
}

func TestSlotNames(t *testing.T) {
	assert.Equal(t, "notes", Notes.String())
	assert.Equal(t, "echo_codon", EchoCodon.String())
	assert.Equal(t, "mutation_rate", MutationRate.String())
	assert.Equal(t, "unknown", Slot(42).String())
	assert.Len(t, Slots(), 10)
}
