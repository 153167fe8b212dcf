package main

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ishanwen-byte/songevolve-go/pkg/database"
	"github.com/ishanwen-byte/songevolve-go/pkg/iteration"
)

func (a *app) runRate(cmd *cobra.Command, args []string) error {
	songID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid song id %q: %w", args[0], err)
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid rating %q: %w", args[1], err)
	}

	ctx := cmd.Context()
	return a.withStore(ctx, func(store database.Store) error {
		song, err := store.GetSong(ctx, songID)
		if err != nil {
			return err
		}
		latest, err := store.LatestGeneration(ctx)
		if err != nil {
			return err
		}
		if song.Generation != latest {
			a.logger.WithFields(logrus.Fields{
				"song_id":    songID,
				"generation": song.Generation,
				"latest":     latest,
			}).Warn("Song is not in the current generation, its rating will not affect reproduction")
		}

		if err := store.AddRating(ctx, songID, rating); err != nil {
			return fmt.Errorf("failed to record rating: %w", err)
		}
		pending, err := store.CountRatings(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Rated song %d with %d (%d/%d ratings collected)\n",
			songID, rating, pending, a.config.Reproduction.RatingsPerCycle)
		return nil
	})
}

func (a *app) runReproduce(cmd *cobra.Command, force bool, metricsFile string) error {
	ctx := cmd.Context()
	return a.withStore(ctx, func(store database.Store) error {
		registry := prometheus.NewRegistry()
		worker := iteration.NewWorker(*a.config, store, a.rng, iteration.NewMetrics(registry), a.logger)
		defer worker.Close()

		ready, pending, err := worker.Ready(ctx)
		if err != nil {
			return err
		}
		if !ready && !force {
			return fmt.Errorf("only %d of %d ratings collected; rate more songs or pass --force",
				pending, a.config.Reproduction.RatingsPerCycle)
		}

		stats, err := worker.RunCycle(ctx)
		if err != nil {
			return err
		}

		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}

		data, err := iteration.ToJSON(stats)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	})
}
