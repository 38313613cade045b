package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize is the byte length of a canonical PCM WAV header.
const wavHeaderSize = 44

// WAVHeader represents the header structure of a PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

func newHeader(sampleRate int, dataSize uint32) WAVHeader {
	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeWAV encodes PCM-16 mono samples into WAV format
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := newHeader(sampleRate, dataSize)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes WAV data back to PCM-16 mono samples and the sample rate
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	buf := bytes.NewReader(data)
	var header WAVHeader

	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, fmt.Errorf("no audio data found")
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(header.SampleRate), nil
}

// Writer is a streaming WAV sink. It writes a placeholder header up
// front, appends raw PCM-16 frames as they arrive, and patches the
// size fields on Close. A crash mid-session leaves the data intact
// with a stale header, which most decoders tolerate.
type Writer struct {
	file       *os.File
	sampleRate int
	written    uint32
	closed     bool
}

// NewWriter creates the file at path and writes the provisional header.
func NewWriter(path string, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file %s: %w", path, err)
	}

	header := newHeader(sampleRate, 0)
	if err := binary.Write(file, binary.LittleEndian, header); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return &Writer{file: file, sampleRate: sampleRate}, nil
}

// WriteFrame appends one raw PCM-16 little-endian frame to the file.
func (w *Writer) WriteFrame(frame []byte) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	n, err := w.file.Write(frame)
	w.written += uint32(n)
	if err != nil {
		return fmt.Errorf("failed to write audio frame: %w", err)
	}

	return nil
}

// BytesWritten returns the number of PCM data bytes written so far.
func (w *Writer) BytesWritten() uint32 {
	return w.written
}

// Close patches the RIFF and data chunk sizes and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// ChunkSize at offset 4, Subchunk2Size at offset 40.
	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], 36+w.written)
	if _, err := w.file.WriteAt(sizes[:], 4); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to patch RIFF chunk size: %w", err)
	}

	binary.LittleEndian.PutUint32(sizes[:], w.written)
	if _, err := w.file.WriteAt(sizes[:], 40); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to patch data chunk size: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close WAV file: %w", err)
	}

	return nil
}

// FileDuration returns the duration in seconds of a PCM WAV file on disk,
// reading only the header.
func FileDuration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open WAV file %s: %w", path, err)
	}
	defer file.Close()

	var header WAVHeader
	if err := binary.Read(file, binary.LittleEndian, &header); err != nil {
		return 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return 0, fmt.Errorf("invalid WAV file: %s", path)
	}

	if header.SampleRate == 0 || header.ByteRate == 0 {
		return 0, fmt.Errorf("invalid WAV header rates in %s", path)
	}

	return float64(header.Subchunk2Size) / float64(header.ByteRate), nil
}
