package types

import (
	"time"
)

// SongRecord represents a persisted song: an encoded genome placed on a habitat node
type SongRecord struct {
	ID         int64     `json:"id"`
	Generation int       `json:"generation"`
	NodeID     int       `json:"node_id"`
	Genome     []byte    `json:"genome"`
	Parent1ID  *int64    `json:"parent1_id,omitempty"`
	Parent2ID  *int64    `json:"parent2_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rating is the per-generation fitness input for one song.
// RatingSum is the raw sum of rating events; smoothing is applied by the evaluator.
type Rating struct {
	SongID    int64 `json:"song_id"`
	NodeID    int   `json:"node_id"`
	RatingSum int64 `json:"rating_sum"`
}

// HabitatNode is a capacity-bounded deme
type HabitatNode struct {
	ID       int `yaml:"id" json:"id"`
	Capacity int `yaml:"capacity" json:"capacity"`
}

// HabitatEdge is a directed migration edge
type HabitatEdge struct {
	FromNode    int     `yaml:"from_node" json:"from_node"`
	ToNode      int     `yaml:"to_node" json:"to_node"`
	Probability float64 `yaml:"probability" json:"probability"`
}

// ChildRecord is a produced child queued for insertion into the next generation
type ChildRecord struct {
	Generation int    `json:"generation"`
	NodeID     int    `json:"node_id"`
	Genome     []byte `json:"genome"`
	Parent1ID  int64  `json:"parent1_id"`
	Parent2ID  int64  `json:"parent2_id"`
}

// FitnessRecord is an archived per-song fitness score
type FitnessRecord struct {
	SongID       int64 `json:"song_id"`
	SumOfRatings int64 `json:"sum_of_ratings"`
}

// CycleStats summarises one reproduction cycle
type CycleStats struct {
	RunID            string        `json:"run_id"`
	FromGeneration   int           `json:"from_generation"`
	ToGeneration     int           `json:"to_generation"`
	SongsRated       int           `json:"songs_rated"`
	SlotsPlanned     int           `json:"slots_planned"`
	Migrations       int           `json:"migrations"`
	SkippedSlots     int           `json:"skipped_slots"`
	ChildrenProduced int           `json:"children_produced"`
	Overproduced     int           `json:"overproduced"`
	Duration         time.Duration `json:"duration"`
}

// Checkpoint represents a saved state of the song store
type Checkpoint struct {
	Version       string          `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	NextSongID    int64           `json:"next_song_id"`
	Nodes         []HabitatNode   `json:"nodes"`
	Edges         []HabitatEdge   `json:"edges"`
	Songs         []SongRecord    `json:"songs"`
	PendingRating map[int64][]int `json:"pending_ratings"`
	History       []FitnessRecord `json:"history"`
}

// Config represents the main configuration
type Config struct {
	Genome       GenomeConfig       `yaml:"genome" json:"genome"`
	Habitat      HabitatConfig      `yaml:"habitat" json:"habitat"`
	Database     DatabaseConfig     `yaml:"database" json:"database"`
	Reproduction ReproductionConfig `yaml:"reproduction" json:"reproduction"`
	Controller   ControllerConfig   `yaml:"controller" json:"controller"`
}

// GenomeConfig represents the initial genome shape
type GenomeConfig struct {
	LargeChromosomeMin  int     `yaml:"large_chromosome_min" json:"large_chromosome_min"`
	LargeChromosomeMax  int     `yaml:"large_chromosome_max" json:"large_chromosome_max"`
	SmallChromosomeMin  int     `yaml:"small_chromosome_min" json:"small_chromosome_min"`
	SmallChromosomeMax  int     `yaml:"small_chromosome_max" json:"small_chromosome_max"`
	InitialMutationRate float64 `yaml:"initial_mutation_rate" json:"initial_mutation_rate"`
}

// HabitatConfig represents the habitat topology
type HabitatConfig struct {
	Nodes []HabitatNode `yaml:"nodes" json:"nodes"`
	Edges []HabitatEdge `yaml:"edges" json:"edges"`
}

// DatabaseConfig represents storage configuration
type DatabaseConfig struct {
	Backend       string `yaml:"backend" json:"backend"`
	Path          string `yaml:"path" json:"path"`
	OutputDir     string `yaml:"output_dir" json:"output_dir"`
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// ReproductionConfig represents reproduction cycle configuration
type ReproductionConfig struct {
	RatingSmoothing            float64 `yaml:"rating_smoothing" json:"rating_smoothing"`
	RatingsPerCycle            int     `yaml:"ratings_per_cycle" json:"ratings_per_cycle"`
	EnforceDestinationCapacity bool    `yaml:"enforce_destination_capacity" json:"enforce_destination_capacity"`
}

// ControllerConfig represents controller configuration
type ControllerConfig struct {
	Seed          int64 `yaml:"seed" json:"seed"`
	DecodeWorkers int   `yaml:"decode_workers" json:"decode_workers"`
	Verbose       bool  `yaml:"verbose" json:"verbose"`
}
