package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/types"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists an experiment in a SQLite file. The schema keeps the
// habitat, dispersal_probabilities, songs, current_generation_fitness and
// historic_fitness_scores tables of the relational layout.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB

	logger *logrus.Logger
}

func NewSQLiteStore(path string, logger *logrus.Logger) *SQLiteStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &SQLiteStore{path: path, logger: logger}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection keeps pragmas and in-memory databases consistent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("create tables: %w", err)
	}

	s.db = db
	s.logger.WithField("path", s.path).Debug("Initialized sqlite store")
	return nil
}

func (s *SQLiteStore) SaveHabitat(ctx context.Context, nodes []types.HabitatNode, edges []types.HabitatEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dispersal_probabilities`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM habitat WHERE node NOT IN (SELECT DISTINCT node FROM songs)`); err != nil {
			return err
		}
		for _, n := range nodes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO habitat (node, capacity) VALUES (?, ?)
				ON CONFLICT(node) DO UPDATE SET capacity = excluded.capacity
			`, n.ID, n.Capacity); err != nil {
				return fmt.Errorf("insert node %d: %w", n.ID, err)
			}
		}
		for i, e := range edges {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dispersal_probabilities (position, from_node, to_node, probability)
				VALUES (?, ?, ?, ?)
			`, i, e.FromNode, e.ToNode, e.Probability); err != nil {
				return fmt.Errorf("insert edge %d->%d: %w", e.FromNode, e.ToNode, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadHabitat(ctx context.Context) ([]types.HabitatNode, []types.HabitatEdge, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT node, capacity FROM habitat ORDER BY node`)
	if err != nil {
		return nil, nil, fmt.Errorf("query habitat: %w", err)
	}
	defer rows.Close()

	var nodes []types.HabitatNode
	for rows.Next() {
		var n types.HabitatNode
		if err := rows.Scan(&n.ID, &n.Capacity); err != nil {
			return nil, nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := db.QueryContext(ctx, `
		SELECT from_node, to_node, probability FROM dispersal_probabilities ORDER BY position
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("query dispersal probabilities: %w", err)
	}
	defer edgeRows.Close()

	var edges []types.HabitatEdge
	for edgeRows.Next() {
		var e types.HabitatEdge
		if err := edgeRows.Scan(&e.FromNode, &e.ToNode, &e.Probability); err != nil {
			return nil, nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return nodes, edges, edgeRows.Err()
}

func (s *SQLiteStore) InsertSong(ctx context.Context, song types.SongRecord) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	return insertSong(ctx, db, song)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSong(ctx context.Context, db execer, song types.SongRecord) (int64, error) {
	createdAt := song.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO songs (generation, node, parent1_id, parent2_id, genome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, song.Generation, song.NodeID, nullableID(song.Parent1ID), nullableID(song.Parent2ID), song.Genome, createdAt.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert song: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetSong(ctx context.Context, id int64) (*types.SongRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT song_id, generation, node, parent1_id, parent2_id, genome, created_at
		FROM songs WHERE song_id = ?
	`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("song %d: %w", id, ErrSongNotFound)
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}

func (s *SQLiteStore) SongsInGeneration(ctx context.Context, generation int) ([]types.SongRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT song_id, generation, node, parent1_id, parent2_id, genome, created_at
		FROM songs WHERE generation = ? ORDER BY song_id
	`, generation)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	var out []types.SongRecord
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *song)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LatestGeneration(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var latest sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(generation) FROM songs`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("query latest generation: %w", err)
	}
	if !latest.Valid {
		return 0, ErrNoGeneration
	}
	return int(latest.Int64), nil
}

func (s *SQLiteStore) AddRating(ctx context.Context, songID int64, rating int) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM songs WHERE song_id = ?)`, songID).Scan(&exists); err != nil {
		return fmt.Errorf("check song: %w", err)
	}
	if !exists {
		return fmt.Errorf("song %d: %w", songID, ErrSongNotFound)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO current_generation_fitness (song_id, rating, created_at) VALUES (?, ?, ?)
	`, songID, rating, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountRatings(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM current_generation_fitness`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ratings: %w", err)
	}
	return count, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) GenerationRatings(ctx context.Context, generation int) ([]types.Rating, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	return generationRatings(ctx, db, generation)
}

func generationRatings(ctx context.Context, db querier, generation int) ([]types.Rating, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.song_id, s.node, COALESCE(SUM(f.rating), 0)
		FROM songs s
		LEFT JOIN current_generation_fitness f ON s.song_id = f.song_id
		WHERE s.generation = ?
		GROUP BY s.song_id, s.node
		ORDER BY s.song_id
	`, generation)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var out []types.Rating
	for rows.Next() {
		var r types.Rating
		if err := rows.Scan(&r.SongID, &r.NodeID, &r.RatingSum); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CommitGeneration(ctx context.Context, generation int, children []types.ChildRecord) ([]int64, error) {
	var ids []int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ratings, err := generationRatings(ctx, tx, generation)
		if err != nil {
			return err
		}
		for _, r := range ratings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO historic_fitness_scores (song_id, sum_of_ratings) VALUES (?, ?)
			`, r.SongID, r.RatingSum); err != nil {
				return fmt.Errorf("archive fitness of song %d: %w", r.SongID, err)
			}
		}

		ids = make([]int64, 0, len(children))
		for _, child := range children {
			p1, p2 := child.Parent1ID, child.Parent2ID
			id, err := insertSong(ctx, tx, types.SongRecord{
				Generation: child.Generation,
				NodeID:     child.NodeID,
				Genome:     child.Genome,
				Parent1ID:  &p1,
				Parent2ID:  &p2,
			})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM current_generation_fitness`); err != nil {
			return fmt.Errorf("clear ratings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"generation": generation,
		"children":   len(ids),
	}).Info("Committed generation")
	return ids, nil
}

func (s *SQLiteStore) FitnessHistory(ctx context.Context) ([]types.FitnessRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT song_id, sum_of_ratings FROM historic_fitness_scores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query fitness history: %w", err)
	}
	defer rows.Close()

	var out []types.FitnessRecord
	for rows.Next() {
		var r types.FitnessRecord
		if err := rows.Scan(&r.SongID, &r.SumOfRatings); err != nil {
			return nil, fmt.Errorf("scan fitness record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"historic_fitness_scores",
			"current_generation_fitness",
			"songs",
			"dispersal_probabilities",
			"habitat",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'songs'`)
		return err
	})
	if err == nil {
		s.logger.Info("Reset sqlite store")
	}
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*types.SongRecord, error) {
	var (
		song      types.SongRecord
		p1, p2    sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&song.ID, &song.Generation, &song.NodeID, &p1, &p2, &song.Genome, &createdAt); err != nil {
		return nil, err
	}
	if p1.Valid {
		song.Parent1ID = &p1.Int64
	}
	if p2.Valid {
		song.Parent2ID = &p2.Int64
	}
	song.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &song, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS habitat (
			node INTEGER PRIMARY KEY,
			capacity INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS dispersal_probabilities (
			position INTEGER NOT NULL,
			from_node INTEGER NOT NULL REFERENCES habitat(node),
			to_node INTEGER NOT NULL REFERENCES habitat(node),
			probability REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS songs (
			song_id INTEGER PRIMARY KEY AUTOINCREMENT,
			generation INTEGER NOT NULL,
			node INTEGER NOT NULL REFERENCES habitat(node),
			parent1_id INTEGER REFERENCES songs(song_id),
			parent2_id INTEGER REFERENCES songs(song_id),
			genome BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS songs_generation ON songs(generation);
		CREATE TABLE IF NOT EXISTS current_generation_fitness (
			song_id INTEGER NOT NULL REFERENCES songs(song_id),
			rating INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS historic_fitness_scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			song_id INTEGER NOT NULL REFERENCES songs(song_id),
			sum_of_ratings INTEGER NOT NULL
		);
	`)
	return err
}
