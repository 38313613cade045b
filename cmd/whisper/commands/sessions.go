package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kwasblue/whisper/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the session library",
	Long: `Sessions lists every recording in the library, most recent first.
Raw recordings in the recordings directory that never got a library
record are registered on the way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Logging)

		lib, err := store.Open(filepath.Join(cfg.Paths.RecordingsDir, "sessions.db"), logger)
		if err != nil {
			return fmt.Errorf("failed to open session library: %w", err)
		}
		defer lib.Close()

		// Pick up recordings that crashed before their record was saved.
		if _, err := lib.ScanDir(cfg.Paths.RecordingsDir); err != nil {
			logger.Warn("recordings directory scan failed", slog.String("error", err.Error()))
		}

		sessions, err := lib.List()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No recorded sessions.")
			return nil
		}

		for _, s := range sessions {
			cleaned := " "
			if s.Cleaned {
				cleaned = "*"
			}
			duration := s.Duration
			if duration == "" {
				duration = "-"
			}
			fmt.Printf("%s %s  %-10s  %s\n",
				cleaned, s.RecordedAt.Format("2006-01-02 15:04"), duration, s.Title)
			if s.Summary != "" {
				fmt.Printf("     %s\n", s.Summary)
			}
		}
		fmt.Printf("\n%d session(s). * = cleaned transcript available.\n", len(sessions))
		return nil
	},
}
