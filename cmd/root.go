package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "musictools",
	Short: "Dual-output audio playback core",
	Long: `musictools - a dual-output audio playback core built around a lock-free
SPSC ringbuffer and a producer/consumer architecture for real-time streaming.

Features:
  - Lock-free SPSC ringbuffer with zero-copy audio processing
  - Support for MP3, FLAC, Ogg Vorbis, and WAV audio formats
  - Dual simultaneous output devices with clock-synced alignment
  - Gapless and crossfaded playlist transitions
  - Configurable buffer sizes and audio devices
  - Sample rate transformation and format conversion

Commands:
  - musicplay: Play a queue of files, gapless or crossfaded, with optional dual output
  - transform: Convert audio files to different sample rates and WAV format`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
