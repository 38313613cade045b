// Package session runs live recording sessions. A Recorder drains the
// capture queue from a single consumer goroutine, writes every frame to
// the session WAV file, segments speech, transcribes utterances
// synchronously, and appends timestamped lines to the transcript.
// Progress reaches the presentation layer through a queued event stream.
package session
