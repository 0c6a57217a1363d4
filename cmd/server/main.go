// Command server runs the NetLessons lobby server, or a terminal client for it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "netlessons-lobby"
	serviceVersion    = "1.0.0"
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "UDP lobby server with chat and a number guessing game.",
	Version:       serviceVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd(), newClientCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
