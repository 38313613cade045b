// Package audio handles audio format conversion for the recording notebook.
// It implements WAV encoding/decoding, a streaming WAV file writer for live
// capture, PCM sample conversion, and sample-rate conversion for batch files.
package audio
