// Package wave reads and writes 16-bit PCM WAV files for the record and
// play convenience commands. The streaming core never touches files; this
// is boundary tooling only.
package wave

import (
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Format describes the PCM layout of a loaded file.
type Format struct {
	SampleRate int
	Channels   int
}

// Save writes little-endian S16 PCM bytes to path as a WAV file, creating
// parent directories as needed.
func Save(path string, pcm []byte, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fileError(err, path, "create-dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return fileError(err, path, "create")
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:           pcmToInts(pcm),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fileError(err, path, "encode")
	}
	if err := enc.Close(); err != nil {
		return fileError(err, path, "finalize")
	}
	return nil
}

// Load reads a 16-bit PCM WAV file and returns its samples as raw
// little-endian S16 bytes plus the source format.
func Load(path string) ([]byte, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, fileError(err, path, "open")
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, Format{}, errors.Newf("not a valid WAV file: %s", path).
			Component("wave").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fileError(err, path, "decode")
	}
	if decoder.BitDepth != 16 {
		return nil, Format{}, errors.Newf("unsupported bit depth %d, only S16 is supported", decoder.BitDepth).
			Component("wave").
			Category(errors.CategoryValidation).
			Context("path", path).
			Context("bitdepth", decoder.BitDepth).
			Build()
	}

	format := Format{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}
	return intsToPCM(buf.Data), format, nil
}

// pcmToInts widens 16-bit little-endian byte pairs to int samples. A
// trailing odd byte is ignored.
func pcmToInts(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(pcm[2*i]) | int16(pcm[2*i+1])<<8)
	}
	return samples
}

// intsToPCM packs int samples back into little-endian S16 bytes.
func intsToPCM(samples []int) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		pcm[2*i] = byte(s)
		pcm[2*i+1] = byte(s >> 8)
	}
	return pcm
}

func fileError(err error, path, op string) error {
	return errors.New(err).
		Component("wave").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Context("operation", op).
		Build()
}
