package decoder

import (
	"math"
	"time"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

// Frequency maps an 8-bit field to 0–1275 Hz in 5 Hz steps
func Frequency(bits genome.Bits) float32 {
	return float32(genome.BitsToValue(bits)) * constants.FrequencyStepHz
}

// Amplitude maps an 8-bit field to value/128
func Amplitude(bits genome.Bits) float32 {
	return float32(genome.BitsToValue(bits)) / constants.AmplitudeDivisor
}

// Duration maps an 8-bit field to 0–5100 ms in 20 ms steps
func Duration(bits genome.Bits) time.Duration {
	return time.Duration(genome.BitsToValue(bits)) * constants.DurationStepMilli * time.Millisecond
}

// Phase maps an 8-bit field to 0–2π radians
func Phase(bits genome.Bits) float32 {
	return float32(float64(genome.BitsToValue(bits)) * 2 * math.Pi / 255)
}
