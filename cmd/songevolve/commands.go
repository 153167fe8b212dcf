package main

import (
	"github.com/spf13/cobra"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
)

// newRootCmd builds the command tree. Every call returns a fresh tree with its
// own flag state.
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "songevolve",
		Short:   "Evolve songs from human ratings",
		Long:    constants.Description,
		Version: constants.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	// --- Experiment lifecycle ---
	var interactive bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Seed a new experiment with Adam, Eve and the first generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, interactive)
		},
	}
	initCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "approve Adam on the terminal before seeding")

	var confirmed bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "DANGER: delete every song, rating and the habitat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReset(cmd, confirmed)
		},
	}
	resetCmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the reset")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current generation and pending ratings",
		Args:  cobra.NoArgs,
		RunE:  a.runStatus,
	}

	// --- Rating and reproduction ---
	rateCmd := &cobra.Command{
		Use:   "rate [song-id] [rating]",
		Short: "Record a rating for a song of the current generation",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runRate,
	}

	var force bool
	var metricsFile string
	reproduceCmd := &cobra.Command{
		Use:   "reproduce",
		Short: "Breed the next generation from the collected ratings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReproduce(cmd, force, metricsFile)
		},
	}
	reproduceCmd.Flags().BoolVarP(&force, "force", "f", false, "run even when fewer ratings than ratings_per_cycle are pending")
	reproduceCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write cycle metrics in Prometheus text format to this file")

	// --- Phenotypes ---
	var generation int
	var outputFile string
	decodeCmd := &cobra.Command{
		Use:   "decode [song-id...]",
		Short: "Decode songs to note and effect lists as JSON",
		Long: `decode prints the phenotype of the given songs. Without ids it decodes
every song of --generation, or of the latest generation when none is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := -1
			if cmd.Flags().Changed("generation") {
				gen = generation
			}
			return a.runDecode(cmd, args, gen, outputFile)
		},
	}
	decodeCmd.Flags().IntVarP(&generation, "generation", "g", 0, "generation to decode")
	decodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write JSON to this file instead of stdout")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the archived fitness of every rated song",
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint [name]",
		Short: "Snapshot the memory store to a named checkpoint file",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runCheckpoint,
	}

	// --- Configuration ---
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	configInitCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration to a file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE:        a.runConfigInit,
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  a.runConfigShow,
	}
	configCmd.AddCommand(configInitCmd, configShowCmd)

	rootCmd.AddCommand(initCmd, resetCmd, statusCmd, rateCmd, reproduceCmd, decodeCmd, historyCmd, checkpointCmd, configCmd)
	return rootCmd
}
