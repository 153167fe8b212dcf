package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/database"
	"github.com/ishanwen-byte/songevolve-go/pkg/decoder"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

// decodedSong pairs a phenotype with the song it was decoded from
type decodedSong struct {
	SongID     int64             `json:"song_id"`
	Generation int               `json:"generation"`
	NodeID     int               `json:"node_id"`
	Phenotype  decoder.Phenotype `json:"phenotype"`
}

// runDecode decodes the listed songs, or a whole generation when ids are
// empty. A negative generation selects the latest one.
func (a *app) runDecode(cmd *cobra.Command, args []string, generation int, outputFile string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid song id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	ctx := cmd.Context()
	var records []types.SongRecord
	err := a.withStore(ctx, func(store database.Store) error {
		if len(ids) > 0 {
			for _, id := range ids {
				song, err := store.GetSong(ctx, id)
				if err != nil {
					return err
				}
				records = append(records, *song)
			}
			return nil
		}

		if generation < 0 {
			latest, err := store.LatestGeneration(ctx)
			if err != nil {
				return err
			}
			generation = latest
		}
		var err error
		records, err = store.SongsInGeneration(ctx, generation)
		return err
	})
	if err != nil {
		return err
	}

	genomes := make([]*genome.Genome, len(records))
	for i, r := range records {
		g, err := genome.Unmarshal(r.Genome)
		if err != nil {
			return fmt.Errorf("song %d: %w", r.ID, err)
		}
		genomes[i] = g
	}

	phenotypes, err := decoder.DecodeAll(ctx, genomes, a.config.Controller.DecodeWorkers)
	if err != nil {
		return err
	}

	out := make([]decodedSong, len(records))
	for i, r := range records {
		out[i] = decodedSong{SongID: r.ID, Generation: r.Generation, NodeID: r.NodeID, Phenotype: phenotypes[i]}
	}

	if outputFile == "" {
		return outputJSON(cmd.OutOrStdout(), out)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := outputJSON(f, out); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	a.logger.WithField("songs", len(out)).Infof("Wrote phenotypes to %s", outputFile)
	return nil
}
