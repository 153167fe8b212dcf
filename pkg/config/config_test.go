package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/habitat"
)

var envVars = []string{"SONGEVOLVE_STORE", "SONGEVOLVE_DB_PATH", "OUTPUT_DIR", "SEED", "VERBOSE"}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	assert.NotNil(t, manager)
	assert.NotNil(t, manager.config)
	assert.Empty(t, manager.path)
}

func TestLoadAndSave(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	manager := NewManager()
	require.NoError(t, manager.Save(configPath))

	_, err := os.Stat(configPath)
	require.NoError(t, err)

	newManager := NewManager()
	require.NoError(t, newManager.Load(configPath))

	assert.Equal(t, manager.config, newManager.config)
	assert.Equal(t, configPath, newManager.path)
}

func TestLoadPartialFile(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
habitat:
  nodes:
    - id: 5
      capacity: 3
    - id: 6
      capacity: 2
  edges:
    - from_node: 5
      to_node: 6
      probability: 0.25
reproduction:
  ratings_per_cycle: 9
  enforce_destination_capacity: true
database:
  backend: sqlite
  output_dir: out
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	manager := NewManager()
	require.NoError(t, manager.Load(configPath))
	config := manager.GetConfig()

	assert.Equal(t, []types.HabitatNode{{ID: 5, Capacity: 3}, {ID: 6, Capacity: 2}}, config.Habitat.Nodes)
	assert.Equal(t, []types.HabitatEdge{{FromNode: 5, ToNode: 6, Probability: 0.25}}, config.Habitat.Edges)
	assert.Equal(t, 9, config.Reproduction.RatingsPerCycle)
	assert.True(t, config.Reproduction.EnforceDestinationCapacity)
	assert.Equal(t, constants.DefaultRatingSmoothing, config.Reproduction.RatingSmoothing)
	assert.Equal(t, constants.DefaultLargeChromosomeMin, config.Genome.LargeChromosomeMin)
	assert.Equal(t, constants.StoreSQLite, config.Database.Backend)
	assert.Equal(t, filepath.Join(constants.OutputDir, constants.DefaultSQLiteFile), StorePath(config))
}

func TestLoadNonExistentFile(t *testing.T) {
	manager := NewManager()
	err := manager.Load("/non/existent/file.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid_config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644))

	manager := NewManager()
	err := manager.Load(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *types.Config)
		message string
	}{
		{
			name:    "large range inverted",
			mutate:  func(c *types.Config) { c.Genome.LargeChromosomeMax = c.Genome.LargeChromosomeMin - 1 },
			message: "large chromosome range",
		},
		{
			name:    "small range empty",
			mutate:  func(c *types.Config) { c.Genome.SmallChromosomeMin = 0 },
			message: "small chromosome range",
		},
		{
			name:    "mutation rate too high",
			mutate:  func(c *types.Config) { c.Genome.InitialMutationRate = 0.5 },
			message: "initial mutation rate",
		},
		{
			name:    "no nodes",
			mutate:  func(c *types.Config) { c.Habitat = types.HabitatConfig{} },
			message: "at least one node",
		},
		{
			name:    "zero capacity",
			mutate:  func(c *types.Config) { c.Habitat.Nodes[0].Capacity = 0 },
			message: "capacity must be positive",
		},
		{
			name: "duplicate node",
			mutate: func(c *types.Config) {
				c.Habitat.Nodes = append(c.Habitat.Nodes, types.HabitatNode{ID: 1, Capacity: 2})
			},
			message: habitat.ErrDuplicateNode.Error(),
		},
		{
			name:    "edge to unknown node",
			mutate:  func(c *types.Config) { c.Habitat.Edges[0].ToNode = 42 },
			message: habitat.ErrUnknownNode.Error(),
		},
		{
			name:    "probability out of range",
			mutate:  func(c *types.Config) { c.Habitat.Edges[0].Probability = -0.1 },
			message: habitat.ErrInvalidProbability.Error(),
		},
		{
			name:    "unknown backend",
			mutate:  func(c *types.Config) { c.Database.Backend = "postgres" },
			message: "unsupported store backend",
		},
		{
			name:    "negative smoothing",
			mutate:  func(c *types.Config) { c.Reproduction.RatingSmoothing = -1 },
			message: "rating smoothing",
		},
		{
			name:    "no ratings per cycle",
			mutate:  func(c *types.Config) { c.Reproduction.RatingsPerCycle = 0 },
			message: "ratings per cycle must be positive",
		},
		{
			name:    "no decode workers",
			mutate:  func(c *types.Config) { c.Controller.DecodeWorkers = 0 },
			message: "decode workers must be positive",
		},
	}

	manager := NewManager()
	require.NoError(t, manager.validate(getDefaultConfig()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := getDefaultConfig()
			tt.mutate(config)
			err := manager.validate(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidationFillsPaths(t *testing.T) {
	manager := NewManager()
	config := getDefaultConfig()
	config.Database = types.DatabaseConfig{OutputDir: "runs"}

	require.NoError(t, manager.validate(config))
	assert.Equal(t, constants.StoreMemory, config.Database.Backend)
	assert.Equal(t, filepath.Join("runs", constants.CheckpointDir), config.Database.CheckpointDir)
	assert.Equal(t, filepath.Join("runs", constants.DefaultSQLiteFile), config.Database.Path)
	assert.Equal(t, config.Database.CheckpointDir, StorePath(config))
}

func TestEnvOverrides(t *testing.T) {
	manager := NewManager()
	config := getDefaultConfig()

	t.Setenv("SONGEVOLVE_STORE", "SQLite")
	t.Setenv("SONGEVOLVE_DB_PATH", "/tmp/songs.db")
	t.Setenv("OUTPUT_DIR", "custom-output")
	t.Setenv("SEED", "123")
	t.Setenv("VERBOSE", "true")

	require.NoError(t, manager.applyEnvOverrides(config))
	require.NoError(t, manager.validate(config))

	assert.Equal(t, constants.StoreSQLite, config.Database.Backend)
	assert.Equal(t, "/tmp/songs.db", config.Database.Path)
	assert.Equal(t, "custom-output", config.Database.OutputDir)
	assert.Equal(t, filepath.Join("custom-output", constants.CheckpointDir), config.Database.CheckpointDir)
	assert.Equal(t, int64(123), config.Controller.Seed)
	assert.True(t, config.Controller.Verbose)
}

func TestEnvOverrideKeepsExplicitPaths(t *testing.T) {
	manager := NewManager()
	config := getDefaultConfig()
	config.Database.CheckpointDir = "/var/lib/songevolve"

	clearEnv(t)
	t.Setenv("OUTPUT_DIR", "elsewhere")
	require.NoError(t, manager.applyEnvOverrides(config))
	require.NoError(t, manager.validate(config))

	assert.Equal(t, "/var/lib/songevolve", config.Database.CheckpointDir)
	assert.Equal(t, filepath.Join("elsewhere", constants.DefaultSQLiteFile), config.Database.Path)
}

func TestEnvOverrideInvalidSeed(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEED", "not-a-number")

	err := NewManager().applyEnvOverrides(getDefaultConfig())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SEED")
}

func TestLoadDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEED", "9")

	manager := NewManager()
	require.NoError(t, manager.LoadDefault())
	assert.Equal(t, int64(9), manager.GetConfig().Controller.Seed)
	assert.Empty(t, manager.GetPath())
}

func TestGetSetConfig(t *testing.T) {
	manager := NewManager()
	assert.NotNil(t, manager.GetConfig())

	newConfig := getDefaultConfig()
	newConfig.Reproduction.RatingsPerCycle = 999
	manager.SetConfig(newConfig)

	assert.Equal(t, 999, manager.GetConfig().Reproduction.RatingsPerCycle)
}

func TestCreateDefaultConfig(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "default_config.yaml")

	require.NoError(t, CreateDefaultConfig(configPath))

	manager := NewManager()
	require.NoError(t, manager.Load(configPath))

	config := manager.GetConfig()
	assert.Len(t, config.Habitat.Nodes, 2)
	assert.Equal(t, constants.DefaultRatingsPerCycle, config.Reproduction.RatingsPerCycle)
	assert.Equal(t, constants.DefaultMutationRate, config.Genome.InitialMutationRate)
}
