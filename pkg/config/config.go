package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/habitat"
)

// Manager handles configuration loading and validation
type Manager struct {
	config *types.Config
	path   string
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: getDefaultConfig(),
	}
}

// Load loads configuration from a file
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := getDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.applyEnvOverrides(config); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := m.validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.path = path
	return nil
}

// LoadDefault applies environment overrides to the defaults without a file
func (m *Manager) LoadDefault() error {
	config := getDefaultConfig()
	if err := m.applyEnvOverrides(config); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := m.validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	m.config = config
	return nil
}

// Save saves configuration to a file
func (m *Manager) Save(path string) error {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *types.Config {
	return m.config
}

// SetConfig updates the configuration
func (m *Manager) SetConfig(config *types.Config) {
	m.config = config
}

// GetPath returns the configuration file path
func (m *Manager) GetPath() string {
	return m.path
}

// StorePath returns the location handed to the store factory: the database
// file for sqlite, the checkpoint directory for the memory backend.
func StorePath(config *types.Config) string {
	if config.Database.Backend == constants.StoreSQLite {
		return config.Database.Path
	}
	return config.Database.CheckpointDir
}

// applyEnvOverrides applies environment variable overrides to the configuration
func (m *Manager) applyEnvOverrides(config *types.Config) error {
	// Paths still derived from the old output dir move with it
	if outputDir := os.Getenv("OUTPUT_DIR"); outputDir != "" {
		db := &config.Database
		if db.CheckpointDir == filepath.Join(db.OutputDir, constants.CheckpointDir) {
			db.CheckpointDir = ""
		}
		if db.Path == filepath.Join(db.OutputDir, constants.DefaultSQLiteFile) {
			db.Path = ""
		}
		db.OutputDir = outputDir
	}
	if backend := os.Getenv("SONGEVOLVE_STORE"); backend != "" {
		config.Database.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv("SONGEVOLVE_DB_PATH"); path != "" {
		config.Database.Path = path
	}

	if seed := os.Getenv("SEED"); seed != "" {
		n, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SEED %q: %w", seed, err)
		}
		config.Controller.Seed = n
	}
	if verbose := os.Getenv("VERBOSE"); verbose != "" {
		config.Controller.Verbose = strings.ToLower(verbose) == "true"
	}

	return nil
}

// validate validates the configuration and fills derived paths
func (m *Manager) validate(config *types.Config) error {
	g := config.Genome
	if g.LargeChromosomeMin <= 0 || g.LargeChromosomeMax < g.LargeChromosomeMin {
		return fmt.Errorf("large chromosome range [%d, %d] is invalid", g.LargeChromosomeMin, g.LargeChromosomeMax)
	}
	if g.SmallChromosomeMin <= 0 || g.SmallChromosomeMax < g.SmallChromosomeMin {
		return fmt.Errorf("small chromosome range [%d, %d] is invalid", g.SmallChromosomeMin, g.SmallChromosomeMax)
	}
	if g.InitialMutationRate < 0 || g.InitialMutationRate > constants.MaxMutationRate {
		return fmt.Errorf("initial mutation rate must be within [0, %.1f]", constants.MaxMutationRate)
	}

	if len(config.Habitat.Nodes) == 0 {
		return fmt.Errorf("habitat needs at least one node")
	}
	for _, node := range config.Habitat.Nodes {
		if node.Capacity <= 0 {
			return fmt.Errorf("node %d: capacity must be positive", node.ID)
		}
	}
	if _, err := habitat.FromTopology(config.Habitat.Nodes, config.Habitat.Edges); err != nil {
		return fmt.Errorf("invalid habitat: %w", err)
	}

	switch config.Database.Backend {
	case "":
		config.Database.Backend = constants.StoreMemory
	case constants.StoreMemory, constants.StoreSQLite:
	default:
		return fmt.Errorf("unsupported store backend: %s", config.Database.Backend)
	}

	if config.Reproduction.RatingSmoothing < 0 {
		return fmt.Errorf("rating smoothing must not be negative")
	}
	if config.Reproduction.RatingsPerCycle <= 0 {
		return fmt.Errorf("ratings per cycle must be positive")
	}
	if config.Controller.DecodeWorkers <= 0 {
		return fmt.Errorf("decode workers must be positive")
	}

	if config.Database.OutputDir == "" {
		config.Database.OutputDir = constants.OutputDir
	}
	if config.Database.CheckpointDir == "" {
		config.Database.CheckpointDir = filepath.Join(config.Database.OutputDir, constants.CheckpointDir)
	}
	if config.Database.Path == "" {
		config.Database.Path = filepath.Join(config.Database.OutputDir, constants.DefaultSQLiteFile)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *types.Config {
	return &types.Config{
		Genome: types.GenomeConfig{
			LargeChromosomeMin:  constants.DefaultLargeChromosomeMin,
			LargeChromosomeMax:  constants.DefaultLargeChromosomeMax,
			SmallChromosomeMin:  constants.DefaultSmallChromosomeMin,
			SmallChromosomeMax:  constants.DefaultSmallChromosomeMax,
			InitialMutationRate: constants.DefaultMutationRate,
		},
		Habitat: types.HabitatConfig{
			Nodes: []types.HabitatNode{
				{ID: 1, Capacity: constants.DefaultNodeCapacity},
				{ID: 2, Capacity: constants.DefaultNodeCapacity},
			},
			Edges: []types.HabitatEdge{
				{FromNode: 1, ToNode: 2, Probability: 0.1},
				{FromNode: 2, ToNode: 1, Probability: 0.1},
			},
		},
		Database: types.DatabaseConfig{
			Backend:       constants.StoreMemory,
			Path:          filepath.Join(constants.OutputDir, constants.DefaultSQLiteFile),
			OutputDir:     constants.OutputDir,
			CheckpointDir: filepath.Join(constants.OutputDir, constants.CheckpointDir),
		},
		Reproduction: types.ReproductionConfig{
			RatingSmoothing: constants.DefaultRatingSmoothing,
			RatingsPerCycle: constants.DefaultRatingsPerCycle,
		},
		Controller: types.ControllerConfig{
			Seed:          constants.DefaultRandomSeed,
			DecodeWorkers: constants.DefaultDecodeWorkers,
			Verbose:       false,
		},
	}
}

// CreateDefaultConfig creates a default configuration file
func CreateDefaultConfig(path string) error {
	manager := NewManager()
	return manager.Save(path)
}
