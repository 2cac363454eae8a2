package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "avtool",
	Short: "Audio/video merge utility",
	Long: `avtool aligns narration audio to a video's length and muxes them,
either as a one-shot CLI merge or as a small REST sidecar.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
