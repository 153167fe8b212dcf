package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/internal/types"
)

var (
	ErrNotInitialized = errors.New("store is not initialized")
	ErrSongNotFound   = errors.New("song not found")
	ErrNoGeneration   = errors.New("no songs stored yet")
)

// Store is the persistence boundary of an experiment: habitat topology, songs
// per generation, pending ratings and the archived fitness history.
type Store interface {
	Init(ctx context.Context) error

	SaveHabitat(ctx context.Context, nodes []types.HabitatNode, edges []types.HabitatEdge) error
	LoadHabitat(ctx context.Context) ([]types.HabitatNode, []types.HabitatEdge, error)

	// InsertSong stores a song and returns its assigned id. The record's ID
	// field is ignored.
	InsertSong(ctx context.Context, song types.SongRecord) (int64, error)
	GetSong(ctx context.Context, id int64) (*types.SongRecord, error)
	SongsInGeneration(ctx context.Context, generation int) ([]types.SongRecord, error)
	// LatestGeneration returns ErrNoGeneration when no song is stored
	LatestGeneration(ctx context.Context) (int, error)

	AddRating(ctx context.Context, songID int64, rating int) error
	CountRatings(ctx context.Context) (int, error)
	// GenerationRatings returns one tuple per song of the generation with the
	// raw sum of its pending ratings, zero when unrated
	GenerationRatings(ctx context.Context, generation int) ([]types.Rating, error)

	// CommitGeneration archives the fitness of generation, inserts the
	// children and clears pending ratings in one step. Nothing is written
	// when it fails.
	CommitGeneration(ctx context.Context, generation int, children []types.ChildRecord) ([]int64, error)
	FitnessHistory(ctx context.Context) ([]types.FitnessRecord, error)

	Reset(ctx context.Context) error
	Close() error
}

// NewStore creates a store for the configured backend. For the memory backend
// path is the checkpoint directory; for sqlite it is the database file.
func NewStore(kind, path string, logger *logrus.Logger) (Store, error) {
	switch kind {
	case "", constants.StoreMemory:
		return NewMemoryStore(path, logger), nil
	case constants.StoreSQLite:
		return NewSQLiteStore(path, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
