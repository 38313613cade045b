// Package transcript defines the on-disk transcript line format:
// one "[MM:SS] text" line per utterance, offsets relative to session
// start. It provides formatting, parsing, and chronological merging.
package transcript
