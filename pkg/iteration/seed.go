package iteration

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/crossover"
	"github.com/ishanwen-byte/songevolve-go/pkg/database"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
	"github.com/ishanwen-byte/songevolve-go/pkg/habitat"
)

// ErrAlreadySeeded is returned by Seed when the store already holds songs
var ErrAlreadySeeded = errors.New("experiment already seeded")

// SeedResult identifies the founders and the first generation of an experiment
type SeedResult struct {
	AdamID   int64   `json:"adam_id"`
	EveID    int64   `json:"eve_id"`
	ChildIDs []int64 `json:"child_ids"`
}

// Seed starts an experiment on an empty store. Adam and his clone Eve are
// stored as generation 0 on the lowest-id node and every node is filled with
// capacity crossovers of the pair as generation 1. A nil adam is drawn at
// random from the genome config; a given one is copied without its song id.
// Generation 0 is committed like any other, so the founders enter the fitness
// history with zero sums.
func Seed(ctx context.Context, store database.Store, config types.Config, rng *rand.Rand, adam *genome.Genome, logger *logrus.Logger) (*SeedResult, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	g, err := habitat.FromTopology(config.Habitat.Nodes, config.Habitat.Edges)
	if err != nil {
		return nil, fmt.Errorf("invalid habitat: %w", err)
	}
	nodeIDs := g.NodeIDs()
	if len(nodeIDs) == 0 {
		return nil, fmt.Errorf("invalid habitat: %w", habitat.ErrUnknownNode)
	}

	_, err = store.LatestGeneration(ctx)
	switch {
	case err == nil:
		return nil, ErrAlreadySeeded
	case !errors.Is(err, database.ErrNoGeneration):
		return nil, fmt.Errorf("failed to inspect store: %w", err)
	}

	if err := store.SaveHabitat(ctx, config.Habitat.Nodes, config.Habitat.Edges); err != nil {
		return nil, fmt.Errorf("failed to save habitat: %w", err)
	}

	if adam == nil {
		gc := config.Genome
		adam = genome.Random(rng, gc.LargeChromosomeMin, gc.LargeChromosomeMax, gc.SmallChromosomeMin, gc.SmallChromosomeMax)
		adam.SetMutationRate(gc.InitialMutationRate)
	} else {
		adam = adam.Clone()
	}
	eve := adam.Clone()

	home := nodeIDs[0]
	result := &SeedResult{}
	if result.AdamID, err = insertFounder(ctx, store, home, adam); err != nil {
		return nil, err
	}
	if result.EveID, err = insertFounder(ctx, store, home, eve); err != nil {
		return nil, err
	}
	adam.AssignSongID(result.AdamID)
	eve.AssignSongID(result.EveID)

	engine := crossover.NewEngine(rng)
	var children []types.ChildRecord
	for _, id := range nodeIDs {
		node, _ := g.Node(id)
		for i := 0; i < node.Capacity; i++ {
			children = append(children, types.ChildRecord{
				Generation: 1,
				NodeID:     id,
				Genome:     genome.Marshal(engine.Crossover(adam, eve)),
				Parent1ID:  result.AdamID,
				Parent2ID:  result.EveID,
			})
		}
	}

	result.ChildIDs, err = store.CommitGeneration(ctx, 0, children)
	if err != nil {
		return nil, fmt.Errorf("failed to commit first generation: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"adam":          result.AdamID,
		"eve":           result.EveID,
		"home_node":     home,
		"children":      len(result.ChildIDs),
		"mutation_rate": adam.MutationRate(),
	}).Info("Seeded experiment")

	return result, nil
}

func insertFounder(ctx context.Context, store database.Store, node int, g *genome.Genome) (int64, error) {
	id, err := store.InsertSong(ctx, types.SongRecord{
		Generation: 0,
		NodeID:     node,
		Genome:     genome.Marshal(g),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store founder: %w", err)
	}
	return id, nil
}
