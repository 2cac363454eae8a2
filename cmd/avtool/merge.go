package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/services"
)

var (
	mergeForce     bool
	mergeVerbose   bool
	mergeTolerance float64
)

var mergeCmd = &cobra.Command{
	Use:   "merge <video> <audio> <output>",
	Short: "Merge a video with narration audio, syncing their lengths",
	Long: `Merge a video file with a narration track. The audio is aligned to the
video's duration first: small mismatches are padded with silence or
trimmed, larger ones are time-stretched with ffmpeg's atempo filter.
The video stream is copied untouched.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ffmpeg := services.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
		if mergeTolerance > 0 {
			ffmpeg.Tolerance = mergeTolerance
		}

		result, err := ffmpeg.MergeAudioVideo(cmd.Context(), args[0], args[1], args[2], mergeForce)
		if err != nil {
			return err
		}

		if mergeVerbose {
			fmt.Printf("Video duration:  %.2fs\n", result.InputVideo.Duration)
			fmt.Printf("Audio duration:  %.2fs\n", result.InputAudio.Duration)
			fmt.Printf("Output duration: %.2fs\n", result.Output.Duration)
			fmt.Printf("Speed ratio:     %.3f\n", result.SpeedRatio)
			fmt.Printf("Strategy:        %s\n", result.Strategy)
		}
		fmt.Printf("Merged %s\n", result.Output.Path)
		return nil
	},
}

func init() {
	mergeCmd.Flags().BoolVarP(&mergeForce, "force", "f", false, "overwrite the output file if it exists")
	mergeCmd.Flags().BoolVarP(&mergeVerbose, "verbose", "v", false, "print durations, speed ratio and strategy")
	mergeCmd.Flags().Float64Var(&mergeTolerance, "tolerance", services.DefaultSyncTolerance,
		"duration ratio drift tolerated without time-stretching")
	rootCmd.AddCommand(mergeCmd)
}
