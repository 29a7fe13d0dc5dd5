package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "devmux",
	Short: "Run a full-stack dev environment behind a single port",
	Long: `Devmux supervises a Python backend and a Node frontend as one unit
and fronts both with a reverse proxy, so the whole stack lives on a
single origin during development.

Usage:
  devmux run       Start backend, frontend, and the proxy
  devmux doctor    Check tool resolution and port availability`,
	Version: version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
