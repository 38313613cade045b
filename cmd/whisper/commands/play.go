package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kwasblue/whisper/internal/playback"
)

var playCmd = &cobra.Command{
	Use:   "play <audio-file>",
	Short: "Play back a recorded session",
	Long: `Play sends a recorded WAV file to the system audio output and
shows the playback position. Ctrl-C stops playback.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Logging)

		player, err := playback.Load(args[0], logger)
		if err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		player.Play()

		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		length := player.Length().Round(time.Second)
		for {
			select {
			case <-player.Done():
				fmt.Printf("\r%s / %s\n", length, length)
				return player.Stop()
			case <-sigChan:
				fmt.Println()
				return player.Stop()
			case <-ticker.C:
				fmt.Printf("\r%s / %s ", player.Position().Round(time.Second), length)
			}
		}
	},
}
