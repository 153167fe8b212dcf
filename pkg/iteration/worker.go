package iteration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/database"
	"github.com/ishanwen-byte/songevolve-go/pkg/reproduction"
)

const subscriberBuffer = 16

// ErrWorkerClosed is returned by RunCycle after Close
var ErrWorkerClosed = errors.New("worker is closed")

// CycleEvent is delivered to subscribers once per committed cycle
type CycleEvent struct {
	Stats    types.CycleStats `json:"stats"`
	ChildIDs []int64          `json:"child_ids"`
}

// Worker drives reproduction cycles against a store. Cycles are serialised:
// RunCycle holds the worker lock from the first read to the commit.
type Worker struct {
	config  types.Config
	store   database.Store
	planner *reproduction.Planner
	metrics *Metrics
	logger  *logrus.Logger

	mu     sync.Mutex
	closed bool

	subsMu      sync.Mutex
	subscribers []chan CycleEvent
	subsClosed  bool
}

// NewWorker creates a cycle driver. rng seeds the planner; nil metrics and
// logger get private defaults.
func NewWorker(config types.Config, store database.Store, rng *rand.Rand, metrics *Metrics, logger *logrus.Logger) *Worker {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Worker{
		config:  config,
		store:   store,
		planner: reproduction.NewPlanner(config.Reproduction, rng, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// Subscribe returns a channel receiving one event per committed cycle. Events
// are dropped for a subscriber whose buffer is full. The channel is closed by
// Close.
func (w *Worker) Subscribe() <-chan CycleEvent {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()

	ch := make(chan CycleEvent, subscriberBuffer)
	if w.subsClosed {
		close(ch)
		return ch
	}
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Ready reports whether enough ratings are pending to run a cycle, with the
// current count
func (w *Worker) Ready(ctx context.Context) (bool, int, error) {
	count, err := w.store.CountRatings(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return count >= w.config.Reproduction.RatingsPerCycle, count, nil
}

// RunCycle reads the latest generation with its ratings, plans and produces
// the next generation and commits it. Storage errors abort the cycle before
// anything is written.
func (w *Worker) RunCycle(ctx context.Context) (*types.CycleStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWorkerClosed
	}

	start := time.Now()
	runID := uuid.New().String()
	logger := w.logger.WithField("run_id", runID)

	stats, childIDs, err := w.runCycle(ctx, logger)
	if err != nil {
		w.metrics.Cycles.WithLabelValues("error").Inc()
		logger.WithError(err).Error("Reproduction cycle failed")
		return nil, err
	}
	stats.RunID = runID
	stats.Duration = time.Since(start)

	w.metrics.observe(*stats)
	w.notify(CycleEvent{Stats: *stats, ChildIDs: childIDs})

	logger.WithFields(logrus.Fields{
		"state":      reproduction.Committed,
		"generation": stats.ToGeneration,
		"children":   stats.ChildrenProduced,
		"migrations": stats.Migrations,
		"duration":   stats.Duration,
	}).Info("Cycle completed")

	return stats, nil
}

func (w *Worker) runCycle(ctx context.Context, logger *logrus.Entry) (*types.CycleStats, []int64, error) {
	// Collect everything up front so the planner never touches storage
	generation, err := w.store.LatestGeneration(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read latest generation: %w", err)
	}
	nodes, edges, err := w.store.LoadHabitat(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load habitat: %w", err)
	}
	songs, err := w.store.SongsInGeneration(ctx, generation)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load generation %d: %w", generation, err)
	}
	ratings, err := w.store.GenerationRatings(ctx, generation)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ratings: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"state":      reproduction.RatingsCollected,
		"generation": generation,
		"songs":      len(songs),
		"nodes":      len(nodes),
	}).Debug("Collected cycle inputs")

	result, err := w.planner.Run(reproduction.CycleInput{
		Generation: generation,
		Nodes:      nodes,
		Edges:      edges,
		Songs:      songs,
		Ratings:    ratings,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to plan generation %d: %w", generation+1, err)
	}

	ids, err := w.store.CommitGeneration(ctx, generation, result.Children)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to commit generation %d: %w", result.Generation, err)
	}
	result.State = reproduction.Committed

	overproduced := 0
	for _, n := range result.Overproduced {
		overproduced += n
	}

	return &types.CycleStats{
		FromGeneration:   generation,
		ToGeneration:     result.Generation,
		SongsRated:       result.Fitness.Songs(),
		SlotsPlanned:     len(result.Slots),
		Migrations:       result.Migrations(),
		SkippedSlots:     result.SkippedSlots,
		ChildrenProduced: len(ids),
		Overproduced:     overproduced,
	}, ids, nil
}

func (w *Worker) notify(event CycleEvent) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()

	for _, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
			w.logger.WithField("generation", event.Stats.ToGeneration).Warn("Subscriber is not keeping up, dropping cycle event")
		}
	}
}

// Close stops the worker and closes every subscriber channel. It waits for a
// running cycle to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subscribers {
		close(ch)
	}
	w.subscribers = nil
	w.subsClosed = true
}

// ToJSON renders the cycle statistics
func ToJSON(stats *types.CycleStats) ([]byte, error) {
	return json.MarshalIndent(stats, "", "  ")
}
