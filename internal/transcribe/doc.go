// Package transcribe provides speech-to-text. An Engine interface wraps
// the whisper.cpp bindings for live utterance transcription, and FileJob
// runs windowed batch transcription of recorded files with progress
// reporting and cooperative cancellation.
package transcribe
