package commands

import (
	"fmt"

	"github.com/marmos91/simfs/internal/cli/output"
	"github.com/marmos91/simfs/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample simfs configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/simfs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  simfs init

  # Initialize with custom path
  simfs init --config /etc/simfs/config.yaml

  # Force overwrite existing config
  simfs init --force`,
	RunE: runInit,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print every configuration key with the value simfs would use, after
merging the config file, SIMFS_* environment variables and defaults.`,
	RunE: runConfigShow,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	fmt.Fprintln(out, "  2. Start the server with: simfs start")
	fmt.Fprintf(out, "  3. Or specify custom config: simfs start --config %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	pairs, err := config.Settings(cfg)
	if err != nil {
		return err
	}
	return output.SimpleTable(cmd.OutOrStdout(), pairs)
}
