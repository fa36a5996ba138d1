// Command aether serves the planetary-orbit lesson and offers offline tools
// for inspecting orbits and the lesson schedule.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "aether",
	Short:         "Planetary orbit lesson server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (YAML, JSON or TOML); AETHER_* environment variables override it")
	rootCmd.AddCommand(serveCmd, pathCmd, timelineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aether:", err)
		os.Exit(1)
	}
}
