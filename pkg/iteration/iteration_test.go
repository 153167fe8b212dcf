package iteration

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/database"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
	"github.com/ishanwen-byte/songevolve-go/pkg/habitat"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() types.Config {
	return types.Config{
		Genome: types.GenomeConfig{
			LargeChromosomeMin:  16,
			LargeChromosomeMax:  32,
			SmallChromosomeMin:  4,
			SmallChromosomeMax:  6,
			InitialMutationRate: 0.03,
		},
		Habitat: types.HabitatConfig{
			Nodes: []types.HabitatNode{{ID: 1, Capacity: 4}},
		},
		Reproduction: types.ReproductionConfig{
			RatingSmoothing: 1,
			RatingsPerCycle: 2,
		},
	}
}

func newStore(t *testing.T) database.Store {
	t.Helper()
	store := database.NewMemoryStore("", quietLogger())
	require.NoError(t, store.Init(context.Background()))
	return store
}

func seeded(t *testing.T, config types.Config) (database.Store, *SeedResult) {
	t.Helper()
	store := newStore(t)
	result, err := Seed(context.Background(), store, config, rand.New(rand.NewSource(1)), nil, quietLogger())
	require.NoError(t, err)
	return store, result
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store, result := seeded(t, testConfig())

	assert.Equal(t, int64(1), result.AdamID)
	assert.Equal(t, int64(2), result.EveID)
	assert.Len(t, result.ChildIDs, 4)

	latest, err := store.LatestGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, latest)

	founders, err := store.SongsInGeneration(ctx, 0)
	require.NoError(t, err)
	require.Len(t, founders, 2)
	assert.Equal(t, founders[0].Genome, founders[1].Genome)

	adam, err := genome.Unmarshal(founders[0].Genome)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, adam.MutationRate(), 1.0/(255*5))

	children, err := store.SongsInGeneration(ctx, 1)
	require.NoError(t, err)
	for _, child := range children {
		assert.Equal(t, 1, child.NodeID)
		require.NotNil(t, child.Parent1ID)
		require.NotNil(t, child.Parent2ID)
		assert.Equal(t, result.AdamID, *child.Parent1ID)
		assert.Equal(t, result.EveID, *child.Parent2ID)
	}

	nodes, _, err := store.LoadHabitat(ctx)
	require.NoError(t, err)
	assert.Equal(t, testConfig().Habitat.Nodes, nodes)

	// The founders bred without ratings and are archived with zero sums
	history, err := store.FitnessHistory(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.FitnessRecord{
		{SongID: result.AdamID, SumOfRatings: 0},
		{SongID: result.EveID, SumOfRatings: 0},
	}, history)
}

func TestSeedFillsEveryNode(t *testing.T) {
	config := testConfig()
	config.Habitat = types.HabitatConfig{
		Nodes: []types.HabitatNode{{ID: 3, Capacity: 2}, {ID: 1, Capacity: 3}},
		Edges: []types.HabitatEdge{{FromNode: 1, ToNode: 3, Probability: 0.5}},
	}
	store, result := seeded(t, config)
	assert.Len(t, result.ChildIDs, 5)

	founders, err := store.SongsInGeneration(context.Background(), 0)
	require.NoError(t, err)
	for _, f := range founders {
		assert.Equal(t, 1, f.NodeID)
	}

	children, err := store.SongsInGeneration(context.Background(), 1)
	require.NoError(t, err)
	perNode := map[int]int{}
	for _, child := range children {
		perNode[child.NodeID]++
	}
	assert.Equal(t, map[int]int{1: 3, 3: 2}, perNode)
}

func TestSeedWithGivenAdam(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	adam := genome.Random(rng, 16, 32, 4, 6)
	adam.SetMutationRate(0)
	adam.AssignSongID(99)

	store := newStore(t)
	result, err := Seed(context.Background(), store, testConfig(), rng, adam, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.AdamID)

	children, err := store.SongsInGeneration(context.Background(), 1)
	require.NoError(t, err)
	for _, child := range children {
		g, err := genome.Unmarshal(child.Genome)
		require.NoError(t, err)
		assert.True(t, adam.Equal(g), "identical homozygous founders without mutation breed true")
	}

	id, ok := adam.ID()
	assert.True(t, ok)
	assert.Equal(t, int64(99), id, "caller's genome is not modified")
}

func TestSeedRejectsSeededStore(t *testing.T) {
	store, _ := seeded(t, testConfig())

	_, err := Seed(context.Background(), store, testConfig(), rand.New(rand.NewSource(2)), nil, quietLogger())
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}

func TestSeedRejectsInvalidHabitat(t *testing.T) {
	tests := []struct {
		name    string
		habitat types.HabitatConfig
		want    error
	}{
		{
			name: "edge to unknown node",
			habitat: types.HabitatConfig{
				Nodes: []types.HabitatNode{{ID: 1, Capacity: 2}},
				Edges: []types.HabitatEdge{{FromNode: 1, ToNode: 2, Probability: 0.5}},
			},
			want: habitat.ErrUnknownNode,
		},
		{
			name: "probability out of range",
			habitat: types.HabitatConfig{
				Nodes: []types.HabitatNode{{ID: 1, Capacity: 2}, {ID: 2, Capacity: 2}},
				Edges: []types.HabitatEdge{{FromNode: 1, ToNode: 2, Probability: 1.5}},
			},
			want: habitat.ErrInvalidProbability,
		},
		{
			name:    "no nodes",
			habitat: types.HabitatConfig{},
			want:    habitat.ErrUnknownNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			config.Habitat = tt.habitat
			store := newStore(t)

			_, err := Seed(context.Background(), store, config, rand.New(rand.NewSource(1)), nil, quietLogger())
			assert.ErrorIs(t, err, tt.want)

			_, err = store.LatestGeneration(context.Background())
			assert.ErrorIs(t, err, database.ErrNoGeneration)
		})
	}
}

func TestRunCycle(t *testing.T) {
	ctx := context.Background()
	config := testConfig()
	store, seed := seeded(t, config)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	worker := NewWorker(config, store, rand.New(rand.NewSource(3)), metrics, quietLogger())
	defer worker.Close()
	events := worker.Subscribe()

	ready, count, err := worker.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, 0, count)

	require.NoError(t, store.AddRating(ctx, seed.ChildIDs[0], 10))
	require.NoError(t, store.AddRating(ctx, seed.ChildIDs[1], 0))

	ready, count, err = worker.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 2, count)

	stats, err := worker.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FromGeneration)
	assert.Equal(t, 2, stats.ToGeneration)
	assert.Equal(t, 4, stats.SongsRated)
	assert.Equal(t, 1, stats.SlotsPlanned)
	assert.Equal(t, 0, stats.Migrations)
	assert.Equal(t, 4, stats.ChildrenProduced)
	assert.NotEmpty(t, stats.RunID)

	latest, err := store.LatestGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)

	pending, err := store.CountRatings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	history, err := store.FitnessHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 6, "two founders plus four rated songs")

	children, err := store.SongsInGeneration(ctx, 2)
	require.NoError(t, err)
	for _, child := range children {
		assert.Contains(t, seed.ChildIDs, *child.Parent1ID)
		assert.Contains(t, seed.ChildIDs, *child.Parent2ID)
	}

	select {
	case event := <-events:
		assert.Equal(t, 2, event.Stats.ToGeneration)
		assert.Len(t, event.ChildIDs, 4)
	default:
		t.Fatal("expected a cycle event")
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Cycles.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Children))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Generation))
}

func TestRunCycleFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	worker := NewWorker(testConfig(), store, rand.New(rand.NewSource(1)), metrics, quietLogger())
	events := worker.Subscribe()

	_, err := worker.RunCycle(ctx)
	assert.ErrorIs(t, err, database.ErrNoGeneration)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Cycles.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Children))
	select {
	case <-events:
		t.Fatal("failed cycle must not notify")
	default:
	}
}

func TestRunCycleCancelledContext(t *testing.T) {
	store, _ := seeded(t, testConfig())
	worker := NewWorker(testConfig(), store, rand.New(rand.NewSource(1)), nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := worker.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	latest, err := store.LatestGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, latest)
}

func TestConsecutiveCycles(t *testing.T) {
	ctx := context.Background()
	store, _ := seeded(t, testConfig())
	worker := NewWorker(testConfig(), store, rand.New(rand.NewSource(5)), nil, quietLogger())

	for want := 2; want <= 4; want++ {
		stats, err := worker.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, stats.ToGeneration)
		assert.Equal(t, 4, stats.ChildrenProduced)
	}
}

func TestWorkerClose(t *testing.T) {
	store, _ := seeded(t, testConfig())
	worker := NewWorker(testConfig(), store, rand.New(rand.NewSource(1)), nil, quietLogger())
	events := worker.Subscribe()

	worker.Close()
	worker.Close()

	_, ok := <-events
	assert.False(t, ok)

	_, ok = <-worker.Subscribe()
	assert.False(t, ok)

	_, err := worker.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrWorkerClosed)
}

func TestToJSON(t *testing.T) {
	data, err := ToJSON(&types.CycleStats{FromGeneration: 1, ToGeneration: 2, ChildrenProduced: 4})
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"to_generation\": 2")
}
