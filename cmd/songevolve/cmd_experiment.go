package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ishanwen-byte/songevolve-go/pkg/approval"
	"github.com/ishanwen-byte/songevolve-go/pkg/database"
	"github.com/ishanwen-byte/songevolve-go/pkg/decoder"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
	"github.com/ishanwen-byte/songevolve-go/pkg/iteration"
)

// statusReport is the output of the status command
type statusReport struct {
	Backend         string `json:"backend"`
	Generation      int    `json:"generation"`
	Songs           int    `json:"songs"`
	PendingRatings  int    `json:"pending_ratings"`
	RatingsPerCycle int    `json:"ratings_per_cycle"`
	Ready           bool   `json:"ready"`
}

func (a *app) runInit(cmd *cobra.Command, interactive bool) error {
	ctx := cmd.Context()

	var adam *genome.Genome
	if interactive {
		var err error
		adam, err = a.chooseAdam(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	return a.withStore(ctx, func(store database.Store) error {
		result, err := iteration.Seed(ctx, store, *a.config, a.rng, adam, a.logger)
		if err != nil {
			return err
		}
		return outputJSON(cmd.OutOrStdout(), result)
	})
}

// chooseAdam proposes random founders until one is accepted. An empty answer
// rejects the proposal.
func (a *app) chooseAdam(in io.Reader, out io.Writer) (*genome.Genome, error) {
	session := approval.NewSession(a.config.Genome, a.rng, a.logger)
	proposal := session.Propose()
	reader := bufio.NewReader(in)

	for {
		describeGenome(out, proposal)
		fmt.Fprint(out, "Accept this Adam? (N/y): ")

		line, err := reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return nil, fmt.Errorf("no answer for proposed Adam: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			fmt.Fprintln(out, "Adam accepted.")
			return session.Accept()
		case "", "n", "no":
			fmt.Fprintln(out, "Generating a new Adam...")
			if proposal, err = session.Reject(); err != nil {
				return nil, err
			}
		default:
			fmt.Fprintln(out, "Please type 'y' to approve or 'n' to reject.")
		}
	}
}

func describeGenome(out io.Writer, g *genome.Genome) {
	p := decoder.Decode(g)
	fmt.Fprintf(out, "Proposed Adam: %d notes, %d effects, mutation rate %.4f\n",
		len(p.Notes), len(p.Effects), g.MutationRate())
	for i, n := range p.Notes {
		if i == 5 {
			fmt.Fprintf(out, "  ... %d more\n", len(p.Notes)-i)
			break
		}
		fmt.Fprintf(out, "  %-6s %8.1f Hz at %v for %v\n", n.Waveform, n.Frequency, n.StartTime, n.Duration)
	}
}

func (a *app) runReset(cmd *cobra.Command, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("reset deletes the whole experiment; pass --yes to confirm")
	}
	ctx := cmd.Context()
	return a.withStore(ctx, func(store database.Store) error {
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Experiment reset.")
		return nil
	})
}

func (a *app) runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return a.withStore(ctx, func(store database.Store) error {
		generation, err := store.LatestGeneration(ctx)
		if errors.Is(err, database.ErrNoGeneration) {
			return fmt.Errorf("experiment not seeded yet, run init first")
		}
		if err != nil {
			return err
		}
		songs, err := store.SongsInGeneration(ctx, generation)
		if err != nil {
			return err
		}
		pending, err := store.CountRatings(ctx)
		if err != nil {
			return err
		}

		threshold := a.config.Reproduction.RatingsPerCycle
		return outputJSON(cmd.OutOrStdout(), statusReport{
			Backend:         a.config.Database.Backend,
			Generation:      generation,
			Songs:           len(songs),
			PendingRatings:  pending,
			RatingsPerCycle: threshold,
			Ready:           pending >= threshold,
		})
	})
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return a.withStore(ctx, func(store database.Store) error {
		history, err := store.FitnessHistory(ctx)
		if err != nil {
			return fmt.Errorf("failed to read fitness history: %w", err)
		}
		return outputJSON(cmd.OutOrStdout(), history)
	})
}

func (a *app) runCheckpoint(cmd *cobra.Command, args []string) error {
	return a.withStore(cmd.Context(), func(store database.Store) error {
		memory, ok := store.(*database.MemoryStore)
		if !ok {
			return fmt.Errorf("checkpoints are only written by the memory store, not %q", a.config.Database.Backend)
		}
		if err := memory.SaveCheckpoint(args[0]); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved checkpoint %s\n", args[0])
		return nil
	})
}
