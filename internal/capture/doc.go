// Package capture provides microphone frame acquisition. A malgo-backed
// source assembles fixed 16 kHz mono PCM-16 frames inside the device
// callback and hands them to a non-blocking queue that the session
// consumer drains.
package capture
