package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/manifest"
)

func newDriversCmd(root *rootFlags) *cobra.Command {
	var driverDir string

	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List the driver manifests discovered in the driver directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("driver-dir") {
				cfg.DriverDir = driverDir
			}

			log, err := logger.New(logger.Options{Level: cfg.LogLevel, HumanReadable: true})
			if err != nil {
				return err
			}

			store := manifest.NewStore(log)
			if err := store.Load(cfg.DriverDir); err != nil {
				return err
			}

			manifests := store.List()
			if len(manifests) == 0 {
				fmt.Printf("no driver manifests in %s\n", cfg.DriverDir)
				return nil
			}

			for _, m := range manifests {
				launch := m.Command
				if len(m.Args) > 0 {
					launch = launch + " " + strings.Join(m.Args, " ")
				}
				fmt.Printf("%-16s %-10s %s\n", m.ID, m.Version, launch)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driverDir, "driver-dir", "", "Directory containing driver manifests")

	return cmd
}
