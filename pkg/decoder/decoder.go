package decoder

import (
	"time"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

// Waveform tags a note with the codon family that produced it
type Waveform int

const (
	Sine Waveform = iota
	Square
	Custom
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Note is one decoded tone
type Note struct {
	StartTime time.Duration
	Frequency float32
	Amplitude float32
	Duration  time.Duration
	Phase     float32
	Waveform  Waveform
}

// EffectKind names the effect variants
type EffectKind string

const (
	KindLowPass  EffectKind = "low_pass"
	KindHighPass EffectKind = "high_pass"
	KindReverb   EffectKind = "reverb"
	KindEcho     EffectKind = "echo"
)

// Effect is one decoded post-processing stage. The concrete types are
// LowPass, HighPass, Reverb and Echo.
type Effect interface {
	Kind() EffectKind
}

type LowPass struct {
	Cutoff float32
}

type HighPass struct {
	Cutoff float32
}

type Reverb struct {
	Delay    time.Duration
	Feedback float32
}

type Echo struct {
	Delay    time.Duration
	Feedback float32
}

func (LowPass) Kind() EffectKind  { return KindLowPass }
func (HighPass) Kind() EffectKind { return KindHighPass }
func (Reverb) Kind() EffectKind   { return KindReverb }
func (Echo) Kind() EffectKind     { return KindEcho }

// Phenotype is the decoded note and effect lists handed to the audio renderer
type Phenotype struct {
	Notes   []Note
	Effects []Effect
}

// codon is a runtime marker taken from the genome being decoded, with the
// number of 8-bit fields that follow it and the constructor for the record.
type codon[T any] struct {
	pattern genome.Bits
	params  int
	build   func(fields []genome.Bits) T
}

// Decode scans the left notes and effects alleles for the genome's own codon
// patterns. It is pure and total: truncated trailing segments are skipped.
func Decode(g *genome.Genome) Phenotype {
	return Phenotype{
		Notes:   scan(g.Notes().Left, noteCodons(g)),
		Effects: scan(g.Effects().Left, effectCodons(g)),
	}
}

func noteCodons(g *genome.Genome) []codon[Note] {
	note := func(w Waveform) func([]genome.Bits) Note {
		return func(f []genome.Bits) Note {
			return Note{
				StartTime: Duration(f[0]),
				Frequency: Frequency(f[1]),
				Amplitude: Amplitude(f[2]),
				Duration:  Duration(f[3]),
				Phase:     Phase(f[4]),
				Waveform:  w,
			}
		}
	}
	return []codon[Note]{
		{pattern: g.SineCodon().Left, params: constants.NoteParameters, build: note(Sine)},
		{pattern: g.SquareCodon().Left, params: constants.NoteParameters, build: note(Square)},
		{pattern: g.CustomCodon().Left, params: constants.NoteParameters, build: note(Custom)},
	}
}

func effectCodons(g *genome.Genome) []codon[Effect] {
	return []codon[Effect]{
		{pattern: g.LowPassCodon().Left, params: 1, build: func(f []genome.Bits) Effect {
			return LowPass{Cutoff: Amplitude(f[0])}
		}},
		{pattern: g.HighPassCodon().Left, params: 1, build: func(f []genome.Bits) Effect {
			return HighPass{Cutoff: Amplitude(f[0])}
		}},
		{pattern: g.ReverbCodon().Left, params: 2, build: func(f []genome.Bits) Effect {
			return Reverb{Delay: Duration(f[0]), Feedback: Amplitude(f[1])}
		}},
		{pattern: g.EchoCodon().Left, params: 2, build: func(f []genome.Bits) Effect {
			return Echo{Delay: Duration(f[0]), Feedback: Amplitude(f[1])}
		}},
	}
}

// scan walks strand left to right. At each position the codons are tried in
// order; the first one that matches with room for its fields emits a record
// and moves the cursor past codon and fields, otherwise the cursor moves by one.
// A match cut short by the end of the strand does not stop later codons from
// trying the same position.
func scan[T any](strand genome.Bits, codons []codon[T]) []T {
	var out []T
	i := 0
	for i < len(strand) {
		next := i + 1
		for _, c := range codons {
			start := i + len(c.pattern)
			end := start + c.params*constants.BitsPerParameter
			if end > len(strand) || !strand.HasPrefixAt(i, c.pattern) {
				continue
			}
			fields := make([]genome.Bits, c.params)
			for k := range fields {
				off := start + k*constants.BitsPerParameter
				fields[k] = strand[off : off+constants.BitsPerParameter]
			}
			out = append(out, c.build(fields))
			next = end
			break
		}
		i = next
	}
	return out
}
