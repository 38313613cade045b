package audio

import (
	"encoding/binary"
	"fmt"
)

// BytesToInt16 converts little-endian PCM-16 bytes to samples.
func BytesToInt16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d", len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// Int16ToBytes converts samples to little-endian PCM-16 bytes.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// BytesToFloat32 converts little-endian PCM-16 bytes to float32 samples
// normalized to [-1, 1], the input format the transcription engine expects.
func BytesToFloat32(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// IntsToFloat32 normalizes decoded PCM samples of the given source bit
// depth to float32 in [-1, 1]. Decoders hand back full-range ints, so
// the scale depends on the bit depth of the source file, not on the
// capture format.
func IntsToFloat32(samples []int, bitDepth int) ([]float32, error) {
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	scale := float32(uint64(1) << (bitDepth - 1))
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / scale
	}
	return out, nil
}

// DownmixMono averages interleaved multi-channel PCM samples into mono.
func DownmixMono(samples []int, channels int) ([]int, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if channels == 1 {
		return samples, nil
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d not divisible by %d channels", len(samples), channels)
	}

	mono := make([]int, len(samples)/channels)
	for i := range mono {
		var sum int
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / channels
	}
	return mono, nil
}
