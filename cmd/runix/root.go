package main

import (
	"github.com/spf13/cobra"

	"github.com/joshdevyn/Runix-sub000/internal/config"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "runix",
		Short:         "Runix executes behavior-driven scenarios through out-of-process automation drivers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to runner configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newDriversCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.configPath == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(flags.configPath)
}
