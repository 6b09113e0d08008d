package audio

import (
	"os"

	"voxrelay/pkg/audioconv"
)

// WriteWAV stores mono samples as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := audioconv.EncodeWAV(f, samples, sampleRate, 1); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
