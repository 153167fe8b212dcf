package decoder

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

type noteJSON struct {
	StartTimeMS int64   `json:"start_time_ms"`
	Frequency   float32 `json:"frequency"`
	Amplitude   float32 `json:"amplitude"`
	DurationMS  int64   `json:"duration_ms"`
	Phase       float32 `json:"phase"`
	Waveform    string  `json:"waveform"`
}

type effectJSON struct {
	Type     EffectKind `json:"type"`
	Cutoff   *float32   `json:"cutoff,omitempty"`
	DelayMS  *int64     `json:"delay_ms,omitempty"`
	Feedback *float32   `json:"feedback,omitempty"`
}

// MarshalJSON renders the phenotype for the external renderer; effects carry a type tag
func (p Phenotype) MarshalJSON() ([]byte, error) {
	view := struct {
		Notes   []noteJSON   `json:"notes"`
		Effects []effectJSON `json:"effects"`
	}{
		Notes:   make([]noteJSON, 0, len(p.Notes)),
		Effects: make([]effectJSON, 0, len(p.Effects)),
	}

	for _, n := range p.Notes {
		view.Notes = append(view.Notes, noteJSON{
			StartTimeMS: n.StartTime.Milliseconds(),
			Frequency:   n.Frequency,
			Amplitude:   n.Amplitude,
			DurationMS:  n.Duration.Milliseconds(),
			Phase:       n.Phase,
			Waveform:    n.Waveform.String(),
		})
	}

	for _, e := range p.Effects {
		out := effectJSON{Type: e.Kind()}
		switch v := e.(type) {
		case LowPass:
			out.Cutoff = &v.Cutoff
		case HighPass:
			out.Cutoff = &v.Cutoff
		case Reverb:
			ms := v.Delay.Milliseconds()
			out.DelayMS, out.Feedback = &ms, &v.Feedback
		case Echo:
			ms := v.Delay.Milliseconds()
			out.DelayMS, out.Feedback = &ms, &v.Feedback
		default:
			return nil, fmt.Errorf("unknown effect type %T", e)
		}
		view.Effects = append(view.Effects, out)
	}

	return json.Marshal(view)
}

// DecodeAll decodes a batch of genomes concurrently with at most workers
// goroutines. Results keep the input order.
func DecodeAll(ctx context.Context, genomes []*genome.Genome, workers int) ([]Phenotype, error) {
	if workers <= 0 {
		workers = 1
	}

	for i, gen := range genomes {
		if gen == nil {
			return nil, fmt.Errorf("genome %d is nil", i)
		}
	}

	out := make([]Phenotype, len(genomes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, gen := range genomes {
		i, gen := i, gen
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Decode(gen)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return out, nil
}
