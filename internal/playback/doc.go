// Package playback plays recorded session audio through the system
// output. A 20 ms ticker maintains a playback position cursor that is
// fully decoupled from the capture pipeline.
package playback
