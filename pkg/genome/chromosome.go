package genome

import (
	"math/rand"
)

// Bits is an allele: an ordered sequence of binary digits, one byte per bit
type Bits []byte

// Clone returns an independent copy of the allele
func (b Bits) Clone() Bits {
	if b == nil {
		return nil
	}
	out := make(Bits, len(b))
	copy(out, b)
	return out
}

// Equal reports whether two alleles are bit-for-bit identical
func (b Bits) Equal(other Bits) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefixAt reports whether pattern occurs in b starting at offset i.
// An empty pattern never matches.
func (b Bits) HasPrefixAt(i int, pattern Bits) bool {
	if len(pattern) == 0 || i < 0 || i+len(pattern) > len(b) {
		return false
	}
	for j, bit := range pattern {
		if b[i+j] != bit {
			return false
		}
	}
	return true
}

// RandomBits returns n uniformly random bits
func RandomBits(rng *rand.Rand, n int) Bits {
	out := make(Bits, n)
	for i := range out {
		out[i] = byte(rng.Intn(2))
	}
	return out
}

// BitsToValue accumulates the bits MSB-first into an unsigned integer
func BitsToValue(bits Bits) uint32 {
	var value uint32
	for _, bit := range bits {
		value = value<<1 | uint32(bit&1)
	}
	return value
}

// ValueToBits writes the low n bits of value MSB-first
func ValueToBits(value uint32, n int) Bits {
	out := make(Bits, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(value & 1)
		value >>= 1
	}
	return out
}

// Chromosome holds the left and right alleles of one trait
type Chromosome struct {
	Left  Bits `json:"left"`
	Right Bits `json:"right"`
}

// NewChromosome builds a chromosome from two alleles
func NewChromosome(left, right Bits) Chromosome {
	return Chromosome{Left: left, Right: right}
}

// RandomChromosome draws a length uniformly in [minLen, maxLen], fills the left
// allele with random bits and copies it to the right allele (homozygous start).
func RandomChromosome(rng *rand.Rand, minLen, maxLen int) Chromosome {
	if maxLen < minLen {
		minLen, maxLen = maxLen, minLen
	}
	if minLen < 0 {
		minLen = 0
	}
	length := minLen
	if maxLen > minLen {
		length += rng.Intn(maxLen - minLen + 1)
	}
	left := RandomBits(rng, length)
	return Chromosome{Left: left, Right: left.Clone()}
}

// Clone deep-copies both alleles
func (c Chromosome) Clone() Chromosome {
	return Chromosome{Left: c.Left.Clone(), Right: c.Right.Clone()}
}

// Equal reports whether both alleles match
func (c Chromosome) Equal(other Chromosome) bool {
	return c.Left.Equal(other.Left) && c.Right.Equal(other.Right)
}

// Homozygous reports whether left and right alleles are identical
func (c Chromosome) Homozygous() bool {
	return c.Left.Equal(c.Right)
}
