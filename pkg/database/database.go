package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
)

const (
	checkpointVersion = "1.0"
	latestCheckpoint  = "latest.json"
)

// MemoryStore keeps an experiment in memory and persists it as JSON
// checkpoints. With a checkpoint directory it resumes from latest.json on
// Init and writes it back on every commit and on Close.
type MemoryStore struct {
	mu sync.RWMutex

	initialized bool

	// Habitat topology
	nodes []types.HabitatNode
	edges []types.HabitatEdge

	// All songs indexed by ID
	songs  map[int64]*types.SongRecord
	nextID int64

	// Pending rating events per song
	ratings map[int64][]int

	// Archived fitness of committed generations
	history []types.FitnessRecord

	// Checkpointing
	checkpointDir string

	logger *logrus.Logger
}

// NewMemoryStore creates an empty store. An empty checkpointDir disables
// persistence.
func NewMemoryStore(checkpointDir string, logger *logrus.Logger) *MemoryStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &MemoryStore{
		songs:         make(map[int64]*types.SongRecord),
		ratings:       make(map[int64][]int),
		nextID:        1,
		checkpointDir: checkpointDir,
		logger:        logger,
	}
}

// Init marks the store ready and restores the latest checkpoint if one exists
func (db *MemoryStore) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if db.checkpointDir != "" {
		latest := filepath.Join(db.checkpointDir, latestCheckpoint)
		if _, err := os.Stat(latest); err == nil {
			if err := db.LoadCheckpoint(latest); err != nil {
				return err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat checkpoint: %w", err)
		}
	}

	db.mu.Lock()
	db.initialized = true
	db.mu.Unlock()

	db.logger.WithField("checkpoint_dir", db.checkpointDir).Debug("Initialized memory store")
	return nil
}

func (db *MemoryStore) SaveHabitat(ctx context.Context, nodes []types.HabitatNode, edges []types.HabitatEdge) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ready(ctx); err != nil {
		return err
	}
	db.nodes = append([]types.HabitatNode(nil), nodes...)
	db.edges = append([]types.HabitatEdge(nil), edges...)
	return nil
}

func (db *MemoryStore) LoadHabitat(ctx context.Context) ([]types.HabitatNode, []types.HabitatEdge, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return nil, nil, err
	}
	return append([]types.HabitatNode(nil), db.nodes...), append([]types.HabitatEdge(nil), db.edges...), nil
}

func (db *MemoryStore) InsertSong(ctx context.Context, song types.SongRecord) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ready(ctx); err != nil {
		return 0, err
	}
	return db.insertLocked(song), nil
}

func (db *MemoryStore) insertLocked(song types.SongRecord) int64 {
	song.ID = db.nextID
	db.nextID++
	if song.CreatedAt.IsZero() {
		song.CreatedAt = time.Now()
	}
	song.Genome = append([]byte(nil), song.Genome...)
	db.songs[song.ID] = &song
	return song.ID
}

func (db *MemoryStore) GetSong(ctx context.Context, id int64) (*types.SongRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	song, ok := db.songs[id]
	if !ok {
		return nil, fmt.Errorf("song %d: %w", id, ErrSongNotFound)
	}
	copied := *song
	return &copied, nil
}

// SongsInGeneration returns the generation's songs ordered by id
func (db *MemoryStore) SongsInGeneration(ctx context.Context, generation int) ([]types.SongRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	return db.generationLocked(generation), nil
}

func (db *MemoryStore) generationLocked(generation int) []types.SongRecord {
	var out []types.SongRecord
	for _, song := range db.songs {
		if song.Generation == generation {
			out = append(out, *song)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *MemoryStore) LatestGeneration(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return 0, err
	}
	if len(db.songs) == 0 {
		return 0, ErrNoGeneration
	}
	latest := 0
	for _, song := range db.songs {
		latest = max(latest, song.Generation)
	}
	return latest, nil
}

func (db *MemoryStore) AddRating(ctx context.Context, songID int64, rating int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ready(ctx); err != nil {
		return err
	}
	if _, ok := db.songs[songID]; !ok {
		return fmt.Errorf("song %d: %w", songID, ErrSongNotFound)
	}
	db.ratings[songID] = append(db.ratings[songID], rating)
	return nil
}

func (db *MemoryStore) CountRatings(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return 0, err
	}
	count := 0
	for _, r := range db.ratings {
		count += len(r)
	}
	return count, nil
}

func (db *MemoryStore) GenerationRatings(ctx context.Context, generation int) ([]types.Rating, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	return db.ratingsLocked(generation), nil
}

func (db *MemoryStore) ratingsLocked(generation int) []types.Rating {
	songs := db.generationLocked(generation)
	out := make([]types.Rating, 0, len(songs))
	for _, song := range songs {
		var sum int64
		for _, r := range db.ratings[song.ID] {
			sum += int64(r)
		}
		out = append(out, types.Rating{SongID: song.ID, NodeID: song.NodeID, RatingSum: sum})
	}
	return out
}

// CommitGeneration archives the generation's fitness, inserts the children
// and clears pending ratings. Parents must exist. With a checkpoint directory
// the commit is rolled back when the checkpoint cannot be written; on error
// nothing changes.
func (db *MemoryStore) CommitGeneration(ctx context.Context, generation int, children []types.ChildRecord) ([]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	for _, child := range children {
		for _, parent := range []int64{child.Parent1ID, child.Parent2ID} {
			if _, ok := db.songs[parent]; !ok {
				return nil, fmt.Errorf("parent %d: %w", parent, ErrSongNotFound)
			}
		}
	}

	historyLen, nextID, ratings := len(db.history), db.nextID, db.ratings

	for _, r := range db.ratingsLocked(generation) {
		db.history = append(db.history, types.FitnessRecord{SongID: r.SongID, SumOfRatings: r.RatingSum})
	}

	ids := make([]int64, 0, len(children))
	for _, child := range children {
		p1, p2 := child.Parent1ID, child.Parent2ID
		ids = append(ids, db.insertLocked(types.SongRecord{
			Generation: child.Generation,
			NodeID:     child.NodeID,
			Genome:     child.Genome,
			Parent1ID:  &p1,
			Parent2ID:  &p2,
		}))
	}
	db.ratings = make(map[int64][]int)

	// The commit only counts once it is on disk
	if db.checkpointDir != "" {
		if err := db.saveCheckpointLocked(fmt.Sprintf("checkpoint_%d.json", generation+1)); err != nil {
			for _, id := range ids {
				delete(db.songs, id)
			}
			db.history = db.history[:historyLen]
			db.nextID = nextID
			db.ratings = ratings
			return nil, fmt.Errorf("failed to persist generation %d: %w", generation+1, err)
		}
	}

	db.logger.WithFields(logrus.Fields{
		"generation": generation,
		"children":   len(ids),
	}).Info("Committed generation")
	return ids, nil
}

func (db *MemoryStore) FitnessHistory(ctx context.Context) ([]types.FitnessRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	return append([]types.FitnessRecord(nil), db.history...), nil
}

// Reset drops every song, rating, fitness record and the habitat
func (db *MemoryStore) Reset(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ready(ctx); err != nil {
		return err
	}
	db.nodes, db.edges, db.history = nil, nil, nil
	db.songs = make(map[int64]*types.SongRecord)
	db.ratings = make(map[int64][]int)
	db.nextID = 1

	db.logger.Info("Reset memory store")
	return nil
}

// Close writes latest.json when a checkpoint directory is configured
func (db *MemoryStore) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.initialized {
		return nil
	}
	db.initialized = false
	if db.checkpointDir == "" {
		return nil
	}
	return db.saveCheckpointLocked("")
}

// SaveCheckpoint writes the store state to name inside the checkpoint
// directory and refreshes latest.json
func (db *MemoryStore) SaveCheckpoint(name string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.checkpointDir == "" {
		return nil
	}
	return db.saveCheckpointLocked(name)
}

func (db *MemoryStore) saveCheckpointLocked(name string) error {
	checkpoint := &types.Checkpoint{
		Version:       checkpointVersion,
		CreatedAt:     time.Now(),
		NextSongID:    db.nextID,
		Nodes:         db.nodes,
		Edges:         db.edges,
		Songs:         make([]types.SongRecord, 0, len(db.songs)),
		PendingRating: db.ratings,
		History:       db.history,
	}
	for _, song := range db.songs {
		checkpoint.Songs = append(checkpoint.Songs, *song)
	}
	sort.Slice(checkpoint.Songs, func(i, j int) bool { return checkpoint.Songs[i].ID < checkpoint.Songs[j].ID })

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(db.checkpointDir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	if name != "" {
		checkpointFile := filepath.Join(db.checkpointDir, name)
		if err := os.WriteFile(checkpointFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write checkpoint file: %w", err)
		}
	}

	latestFile := filepath.Join(db.checkpointDir, latestCheckpoint)
	if err := os.WriteFile(latestFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write latest checkpoint: %w", err)
	}

	db.logger.WithFields(logrus.Fields{
		"songs": len(checkpoint.Songs),
		"file":  latestFile,
	}).Debug("Saved checkpoint")

	return nil
}

// LoadCheckpoint replaces the store state with the checkpoint at path
func (db *MemoryStore) LoadCheckpoint(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint types.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.nodes = checkpoint.Nodes
	db.edges = checkpoint.Edges
	db.history = checkpoint.History
	db.nextID = max(checkpoint.NextSongID, 1)

	db.songs = make(map[int64]*types.SongRecord, len(checkpoint.Songs))
	for i := range checkpoint.Songs {
		song := checkpoint.Songs[i]
		db.songs[song.ID] = &song
		db.nextID = max(db.nextID, song.ID+1)
	}

	db.ratings = checkpoint.PendingRating
	if db.ratings == nil {
		db.ratings = make(map[int64][]int)
	}

	db.logger.WithFields(logrus.Fields{
		"songs": len(db.songs),
		"file":  path,
	}).Info("Loaded checkpoint")

	return nil
}

func (db *MemoryStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !db.initialized {
		return ErrNotInitialized
	}
	return nil
}
