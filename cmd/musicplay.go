package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/musictools/pkg/aeengine"
	"github.com/drgolem/musictools/pkg/aesink"
	"github.com/drgolem/musictools/pkg/guisound"
	"github.com/drgolem/musictools/pkg/musicplayer"
	"github.com/drgolem/musictools/pkg/settings"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

// actionStartPlayback is a placeholder UI action ID for the optional
// start-sound binding; a real host assigns these from its own action table.
const actionStartPlayback = 1

var (
	deviceIdx int
	verbose   bool

	musicConfigFile   string
	musicDeviceCount  int
	musicDualOutput   bool
	musicSecondaryDev int
	musicCrossfadeSec float64
	musicStartSound   string
)

// musicplayCmd represents the gapless/crossfade playlist command.
var musicplayCmd = &cobra.Command{
	Use:   "musicplay <file> [file...]",
	Short: "Play a queue of music files, gapless or crossfaded, with optional dual output",
	Long: `Plays a sequence of files through the dual-output audio engine, chaining
each stream into the next without a gap, or crossfading between them when
musicplayer.crossfade is configured above zero.

Examples:
  # Gapless playback of an album
  musictools musicplay track1.flac track2.flac track3.flac

  # 3 second crossfade between tracks, on two output devices at once
  musictools musicplay --crossfade 3 --dual-output --secondary-device 2 a.mp3 b.mp3`,
	Args: cobra.MinimumNArgs(1),
	Run:  runMusicplay,
}

func init() {
	rootCmd.AddCommand(musicplayCmd)

	musicplayCmd.Flags().IntVarP(&deviceIdx, "device", "d", 1, "Primary audio output device index")
	musicplayCmd.Flags().IntVar(&musicDeviceCount, "device-count", 16, "Number of output devices to accept (PortAudio enumerates at process start)")
	musicplayCmd.Flags().StringVarP(&musicConfigFile, "config", "c", "", "YAML settings file (defaults used if omitted)")
	musicplayCmd.Flags().BoolVar(&musicDualOutput, "dual-output", false, "Also render through a second output device")
	musicplayCmd.Flags().IntVar(&musicSecondaryDev, "secondary-device", 2, "Secondary audio output device index")
	musicplayCmd.Flags().Float64Var(&musicCrossfadeSec, "crossfade", -1, "Crossfade seconds between tracks (overrides config if >= 0)")
	musicplayCmd.Flags().StringVar(&musicStartSound, "start-sound", "", "Optional sound file to play once playback starts")
	musicplayCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runMusicplay(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg := settings.Default()
	if musicConfigFile != "" {
		loaded, err := settings.Load(musicConfigFile)
		if err != nil {
			slog.Error("Failed to load settings", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if musicCrossfadeSec >= 0 {
		cfg.MusicPlayer.CrossfadeSeconds = musicCrossfadeSec
	}
	if musicDualOutput {
		cfg.AudioOutput2.Enabled = true
	}

	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	factory := aeengine.NewFactory(musicDeviceCount)
	if !factory.Load(deviceIdx, cfg.AudioOutput2.Enabled, musicSecondaryDev) {
		slog.Error("Failed to load primary audio engine", "device", deviceIdx)
		os.Exit(1)
	}

	sounds := guisound.New(factory, aesink.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16})
	sounds.Enable(cfg.LookAndFeel.SoundSkin)
	sounds.SetDualOutput(cfg.AudioOutput2.Enabled)
	if musicStartSound != "" {
		sounds.BindAction(actionStartPlayback, musicStartSound)
	}

	queuePos := 0
	var player *musicplayer.Player
	player = musicplayer.New(factory, &cfg.MusicPlayer, func() {
		queuePos++
		if queuePos >= len(args) {
			return
		}
		if err := player.QueueNextFile(args[queuePos], "", cfg.AudioOutput2.Enabled); err != nil {
			slog.Warn("Failed to queue next file", "file", args[queuePos], "error", err)
		}
	})

	if err := player.QueueNextFile(args[0], "", cfg.AudioOutput2.Enabled); err != nil {
		slog.Error("Failed to queue first file", "file", args[0], "error", err)
		os.Exit(1)
	}
	sounds.PlayActionSound(actionStartPlayback)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	slog.Info("Starting playback", "files", len(args), "crossfade_seconds", cfg.MusicPlayer.CrossfadeSeconds)
	for {
		select {
		case <-ticker.C:
			player.Tick()
			snap := player.GetSnapshot()
			if snap.File == "" && snap.QueuedStreams == 0 && queuePos >= len(args)-1 {
				slog.Info("Playback queue drained")
				sounds.Unload()
				return
			}
		case sig := <-sigChan:
			slog.Info("Signal received, stopping playback", "signal", sig)
			player.SoftStop(true, true)
			sounds.Unload()
			return
		}
	}
}
