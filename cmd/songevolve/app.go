package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/config"
	"github.com/ishanwen-byte/songevolve-go/pkg/database"
)

// skipConfig marks commands that run without loading a configuration
const skipConfig = "skip-config"

// app is the state shared by every command of one invocation
type app struct {
	configPath string
	verbose    bool

	config *types.Config
	logger *logrus.Logger
	rng    *rand.Rand
}

func (a *app) load(cmd *cobra.Command) error {
	manager := config.NewManager()
	var err error
	if a.configPath != "" {
		err = manager.Load(a.configPath)
	} else {
		err = manager.LoadDefault()
	}
	if err != nil {
		return err
	}
	a.config = manager.GetConfig()

	a.logger = logrus.New()
	a.logger.SetOutput(cmd.ErrOrStderr())
	a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if a.verbose || a.config.Controller.Verbose {
		a.logger.SetLevel(logrus.DebugLevel)
	}

	seed := a.config.Controller.Seed
	if seed == constants.DefaultRandomSeed {
		seed = time.Now().UnixNano()
	}
	a.rng = rand.New(rand.NewSource(seed))
	a.logger.WithField("seed", seed).Debug("Random source ready")
	return nil
}

// openStore creates the configured store, making its directory first
func (a *app) openStore(ctx context.Context) (database.Store, error) {
	backend := a.config.Database.Backend
	path := config.StorePath(a.config)

	dir := path
	if backend == constants.StoreSQLite {
		dir = filepath.Dir(path)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	store, err := database.NewStore(backend, path, a.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
	}
	return store, nil
}

// withStore opens the store for the duration of fn. A failed Close fails the
// command unless fn already did.
func (a *app) withStore(ctx context.Context, fn func(store database.Store) error) (err error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		cerr := store.Close()
		if cerr == nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("failed to close store: %w", cerr)
			return
		}
		a.logger.WithError(cerr).Warn("Failed to close store")
	}()
	return fn(store)
}

func outputJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
