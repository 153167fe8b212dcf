package genome

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
)

var (
	// ErrTruncated is returned when the payload ends inside a record
	ErrTruncated = errors.New("genome payload truncated")
	// ErrInvalidBit is returned when an allele byte is neither 0 nor 1
	ErrInvalidBit = errors.New("allele byte is not a bit")
	// ErrTrailingData is returned when bytes remain after the tenth record
	ErrTrailingData = errors.New("trailing data after genome payload")
)

// Marshal encodes the ten chromosome pairs in slot order. Each allele is a
// 4-byte big-endian bit count followed by one byte per bit. The song id is not
// part of the payload.
func Marshal(g *Genome) []byte {
	size := 0
	for _, c := range g.Chromosomes {
		size += 2*constants.AlleleLengthPrefix + len(c.Left) + len(c.Right)
	}

	out := make([]byte, 0, size)
	for _, c := range g.Chromosomes {
		out = appendAllele(out, c.Left)
		out = appendAllele(out, c.Right)
	}
	return out
}

// Unmarshal decodes a payload produced by Marshal
func Unmarshal(data []byte) (*Genome, error) {
	g := &Genome{}
	offset := 0
	for _, slot := range Slots() {
		left, next, err := readAllele(data, offset)
		if err != nil {
			return nil, fmt.Errorf("slot %s left allele: %w", slot, err)
		}
		right, next, err := readAllele(data, next)
		if err != nil {
			return nil, fmt.Errorf("slot %s right allele: %w", slot, err)
		}
		g.Chromosomes[slot] = Chromosome{Left: left, Right: right}
		offset = next
	}
	if offset != len(data) {
		return nil, fmt.Errorf("%d bytes: %w", len(data)-offset, ErrTrailingData)
	}
	return g, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (g *Genome) MarshalBinary() ([]byte, error) {
	return Marshal(g), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The song id is left untouched.
func (g *Genome) UnmarshalBinary(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	g.Chromosomes = decoded.Chromosomes
	return nil
}

func appendAllele(out []byte, bits Bits) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(bits)))
	return append(out, bits...)
}

func readAllele(data []byte, offset int) (Bits, int, error) {
	if len(data)-offset < constants.AlleleLengthPrefix {
		return nil, offset, ErrTruncated
	}
	length := int(binary.BigEndian.Uint32(data[offset:]))
	offset += constants.AlleleLengthPrefix
	if length < 0 || len(data)-offset < length {
		return nil, offset, ErrTruncated
	}

	bits := make(Bits, length)
	for i, b := range data[offset : offset+length] {
		if b > 1 {
			return nil, offset, fmt.Errorf("byte %d = %d: %w", offset+i, b, ErrInvalidBit)
		}
		bits[i] = b
	}
	return bits, offset + length, nil
}
