package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mountcheck/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize settings",
	Long: `Settings are read from --config, $MOUNTCHECK_CONFIG, or
~/.mountcheck/settings.yaml, in that order. Missing fields take their
default values. $MOUNTCHECK_STATE_DIR moves the state directory.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(settings)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file and state paths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "settings:  %s\n", settingsFile())
		fmt.Fprintf(out, "state:     %s\n", config.StateDir())
		fmt.Fprintf(out, "mounts:    %s\n", settings.EphemeralRoot())
		fmt.Fprintf(out, "history:   %s\n", settings.HistoryPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings file if it does not exist",
	Args:  cobra.NoArgs,
	// Runs without loading settings: the file may not exist yet.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := settingsFile()
		written, err := config.Init(path)
		if err != nil {
			return err
		}
		if written {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default settings to %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Settings already exist at %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
}

func settingsFile() string {
	if configPath != "" {
		return configPath
	}
	return config.SettingsPath()
}
