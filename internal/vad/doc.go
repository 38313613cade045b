// Package vad provides per-frame voice activity detection and utterance
// segmentation. A WebRTC-based classifier decides speech/silence per
// 30 ms frame and a hysteresis state machine groups speech runs into
// utterances, closing each after a configurable trailing-silence window.
package vad
