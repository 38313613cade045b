// Package main provides the whisper recording notebook CLI.
//
// Usage:
//
//	whisper [flags] <command> [args]
//
// Commands:
//
//	record      - Record from the microphone with live transcription
//	transcribe  - Transcribe a recorded audio file
//	sessions    - List the session library
//	play        - Play back a recorded session
package main

import (
	"fmt"
	"os"

	"github.com/kwasblue/whisper/cmd/whisper/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
