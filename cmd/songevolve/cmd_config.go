package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ishanwen-byte/songevolve-go/pkg/config"
)

func (a *app) runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.CreateDefaultConfig(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", args[0])
	return nil
}

func (a *app) runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(a.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
