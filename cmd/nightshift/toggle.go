package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nightshift-sh/nightshift/pkg/logger"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable blocker diversion for the current project",
	RunE: func(_ *cobra.Command, _ []string) error {
		return setDivert(true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable blocker diversion for the current project",
	RunE: func(_ *cobra.Command, _ []string) error {
		return setDivert(false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

// setDivert persists the toggle to the project config file so every later
// hook invocation picks it up.
func setDivert(enabled bool) error {
	_, loader := loadConfig(logger.NewNoOpLogger())
	if loader == nil {
		return errors.New("failed to locate project configuration")
	}

	if err := loader.SetProjectDivertEnabled(enabled); err != nil {
		return errors.Wrap(err, "failed to update project configuration")
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}

	fmt.Printf("Blocker diversion %s for this project (%s)\n",
		state, loader.ProjectConfigPath())

	return nil
}
