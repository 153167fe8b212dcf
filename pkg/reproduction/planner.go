package reproduction

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/crossover"
	"github.com/ishanwen-byte/songevolve-go/pkg/evaluator"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
	"github.com/ishanwen-byte/songevolve-go/pkg/habitat"
)

// CycleState is a step of one reproduction cycle
type CycleState int

const (
	RatingsCollected CycleState = iota
	FitnessComputed
	MigrationPlanned
	ChildrenProduced
	Committed
)

func (s CycleState) String() string {
	switch s {
	case RatingsCollected:
		return "ratings_collected"
	case FitnessComputed:
		return "fitness_computed"
	case MigrationPlanned:
		return "migration_planned"
	case ChildrenProduced:
		return "children_produced"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// CycleInput is everything a cycle reads, collected up front from storage
type CycleInput struct {
	Generation int
	Nodes      []types.HabitatNode
	Edges      []types.HabitatEdge
	Songs      []types.SongRecord
	Ratings    []types.Rating
}

// CycleResult is the plan and the children of one cycle, ready to commit
type CycleResult struct {
	Generation   int                 `json:"generation"`
	State        CycleState          `json:"state"`
	Fitness      evaluator.Fitness   `json:"fitness"`
	Slots        []Slot              `json:"slots"`
	Children     []types.ChildRecord `json:"children"`
	SkippedSlots int                 `json:"skipped_slots"`
	Overproduced map[int]int         `json:"overproduced,omitempty"`
	Duration     time.Duration       `json:"duration"`
}

// Migrations counts slots that draw parents from another node
func (r *CycleResult) Migrations() int {
	n := 0
	for _, s := range r.Slots {
		if s.Migrated() {
			n++
		}
	}
	return n
}

// Planner turns one rated generation into the children of the next. It owns
// no storage; a Planner is not safe for concurrent use because it shares its
// rng with the crossover engine.
type Planner struct {
	config    types.ReproductionConfig
	rng       *rand.Rand
	engine    *crossover.Engine
	evaluator *evaluator.Evaluator
	logger    *logrus.Logger
}

// NewPlanner creates a planner. A nil rng falls back to a time seed and a nil
// logger to a default logrus logger.
func NewPlanner(config types.ReproductionConfig, rng *rand.Rand, logger *logrus.Logger) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Planner{
		config:    config,
		rng:       rng,
		engine:    crossover.NewEngine(rng),
		evaluator: evaluator.New(config.RatingSmoothing, logger),
		logger:    logger,
	}
}

// Run computes fitness, plans migration and produces children. It stops at
// ChildrenProduced; committing the result is the caller's job.
func (p *Planner) Run(in CycleInput) (*CycleResult, error) {
	start := time.Now()
	result := &CycleResult{
		Generation:   in.Generation + 1,
		State:        RatingsCollected,
		Overproduced: make(map[int]int),
	}

	graph, err := habitat.FromTopology(in.Nodes, in.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to build habitat: %w", err)
	}

	genomes, ratings, err := p.collect(graph, in)
	if err != nil {
		return nil, err
	}
	p.transition(result, FitnessComputed)

	result.Fitness = p.evaluator.Evaluate(ratings)
	for _, id := range graph.NodeIDs() {
		node, _ := graph.Node(id)
		weights := make(map[int64]float64, len(result.Fitness[id]))
		for _, c := range result.Fitness[id] {
			weights[c.SongID] = c.Weight
		}
		for _, s := range node.Songs {
			s.Fitness = weights[s.ID]
		}
	}
	p.transition(result, MigrationPlanned)

	result.Slots = PlanMigration(p.rng, graph)
	p.logger.WithFields(logrus.Fields{
		"slots":      len(result.Slots),
		"migrations": result.Migrations(),
	}).Debug("Planned migration")
	p.transition(result, ChildrenProduced)

	produced := make(map[int]int)
	for _, slot := range result.Slots {
		source, _ := graph.Node(slot.Source)
		dest, _ := graph.Node(slot.Dest)

		count := source.Capacity
		if p.config.EnforceDestinationCapacity {
			count = min(count, dest.Capacity-produced[slot.Dest])
		}
		if count <= 0 {
			continue
		}

		candidates := result.Fitness[slot.Source]
		if len(candidates) == 0 {
			p.logger.WithFields(logrus.Fields{
				"source": slot.Source,
				"dest":   slot.Dest,
			}).Warn("Source node has no songs, skipping slot")
			result.SkippedSlots++
			continue
		}
		if len(candidates) == 1 {
			p.logger.WithField("node", slot.Source).Warn("Single song in node, parents will be selfed")
		}

		for i := 0; i < count; i++ {
			child, err := p.breed(result.Generation, slot, candidates, genomes)
			if err != nil {
				return nil, err
			}
			result.Children = append(result.Children, child)
		}
		produced[slot.Dest] += count
	}

	for _, id := range graph.NodeIDs() {
		node, _ := graph.Node(id)
		if over := produced[id] - node.Capacity; over > 0 {
			result.Overproduced[id] = over
			p.logger.WithFields(logrus.Fields{
				"node":     id,
				"capacity": node.Capacity,
				"children": produced[id],
			}).Warn("Node received more children than its capacity")
		}
	}

	result.Duration = time.Since(start)
	p.logger.WithFields(logrus.Fields{
		"generation": result.Generation,
		"children":   len(result.Children),
		"skipped":    result.SkippedSlots,
		"duration":   result.Duration,
	}).Info("Produced next generation")

	return result, nil
}

// collect places the generation's songs in the graph and lines up one rating
// per song. Songs without rating tuples count as rated zero; tuples for songs
// outside the generation are dropped.
func (p *Planner) collect(graph *habitat.Graph, in CycleInput) (map[int64]*genome.Genome, []types.Rating, error) {
	sums := make(map[int64]int64, len(in.Ratings))
	for _, r := range in.Ratings {
		sums[r.SongID] += r.RatingSum
	}

	genomes := make(map[int64]*genome.Genome, len(in.Songs))
	ratings := make([]types.Rating, 0, len(in.Songs))
	for _, rec := range in.Songs {
		g, err := genome.Unmarshal(rec.Genome)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode genome of song %d: %w", rec.ID, err)
		}
		g.AssignSongID(rec.ID)

		placed, err := graph.AddSong(rec.NodeID, &habitat.Song{ID: rec.ID, Genome: g})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to place song %d: %w", rec.ID, err)
		}
		if !placed {
			p.logger.WithFields(logrus.Fields{
				"song": rec.ID,
				"node": rec.NodeID,
			}).Warn("Node is full, song excluded from selection")
			continue
		}

		genomes[rec.ID] = g
		ratings = append(ratings, types.Rating{SongID: rec.ID, NodeID: rec.NodeID, RatingSum: sums[rec.ID]})
		delete(sums, rec.ID)
	}

	if len(sums) > 0 {
		p.logger.WithField("songs", len(sums)).Warn("Ignoring ratings for songs outside the generation")
	}
	return genomes, ratings, nil
}

func (p *Planner) breed(generation int, slot Slot, candidates []evaluator.Candidate, genomes map[int64]*genome.Genome) (types.ChildRecord, error) {
	father, mother, err := PickParents(p.rng, candidates)
	if err != nil {
		return types.ChildRecord{}, fmt.Errorf("failed to pick parents at node %d: %w", slot.Source, err)
	}

	child := p.engine.Crossover(genomes[father.SongID], genomes[mother.SongID])
	data, err := child.MarshalBinary()
	if err != nil {
		return types.ChildRecord{}, fmt.Errorf("failed to encode child: %w", err)
	}

	return types.ChildRecord{
		Generation: generation,
		NodeID:     slot.Dest,
		Genome:     data,
		Parent1ID:  father.SongID,
		Parent2ID:  mother.SongID,
	}, nil
}

func (p *Planner) transition(result *CycleResult, next CycleState) {
	p.logger.WithFields(logrus.Fields{
		"from": result.State,
		"to":   next,
	}).Debug("Cycle state transition")
	result.State = next
}
