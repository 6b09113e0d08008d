package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"voxrelay/internal/apperr"
)

// DefaultTargetRate is the rate speech recognizers expect.
const DefaultTargetRate = 16000

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Normalize decodes an uploaded container and returns mono 16-bit
// little-endian PCM at targetRate.
//
// WAV input must carry 16-bit samples; other widths are rejected. Ogg
// (Vorbis or Opus) and MP3 are decoded to 16-bit first and then follow the
// same downmix and resample steps.
func Normalize(raw []byte, targetRate int) (int, []byte, error) {
	if targetRate <= 0 {
		targetRate = DefaultTargetRate
	}
	if len(raw) == 0 {
		return targetRate, []byte{}, nil
	}

	samples, channels, rate, err := decode(raw)
	if err != nil {
		return 0, nil, err
	}

	if channels == 1 && rate == targetRate {
		return targetRate, int16sToBytes(samples), nil
	}

	samples = downmixInterleaved(samples, channels)
	samples = resampleLinear(samples, rate, targetRate)

	return targetRate, int16sToBytes(samples), nil
}

func decode(raw []byte) ([]int16, int, int, error) {
	magic := raw
	if len(magic) > 4 {
		magic = magic[:4]
	}

	switch {
	case bytes.HasPrefix(magic, []byte("RIFF")):
		return decodeWAV(bytes.NewReader(raw))
	case bytes.HasPrefix(magic, []byte("OggS")):
		s, ch, sr, err := decodeOggVorbis(bytes.NewReader(raw))
		if err == nil {
			return s, ch, sr, nil
		}
		s, ch, sr, e2 := decodeOggOpus(bytes.NewReader(raw))
		if e2 == nil {
			return s, ch, sr, nil
		}
		return nil, 0, 0, apperr.Wrap(apperr.KindUnsupportedFormat, "audioconv.decode",
			"cannot decode Ogg container as Vorbis or Opus", errors.Join(err, e2))
	case bytes.HasPrefix(magic, []byte("ID3")), isMPEGFrameSync(magic):
		return decodeMP3(bytes.NewReader(raw))
	default:
		return nil, 0, 0, apperr.New(apperr.KindUnsupportedFormat, "audioconv.decode",
			"unsupported container (supported: wav/mp3/ogg-vorbis/ogg-opus)")
	}
}

func decodeWAV(r io.ReadSeeker) ([]int16, int, int, error) {
	const op = "audioconv.wav"

	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, 0, 0, apperr.Wrap(apperr.KindUnsupportedFormat, op, "invalid wav header", err)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, 0, 0, apperr.Newf(apperr.KindUnsupportedFormat, op,
			"only PCM WAV files are supported (format tag %d)", dec.WavAudioFormat)
	}
	if dec.BitDepth != 16 {
		return nil, 0, 0, apperr.Newf(apperr.KindUnsupportedFormat, op,
			"only 16-bit PCM WAV files are supported (got %d-bit)", dec.BitDepth)
	}
	if dec.NumChans < 1 || dec.SampleRate == 0 {
		return nil, 0, 0, apperr.New(apperr.KindUnsupportedFormat, op, "wav header lacks channels or sample rate")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, apperr.Wrap(apperr.KindUnsupportedFormat, op, "read pcm data", err)
	}

	out := make([]int16, 0)
	if pb != nil {
		out = make([]int16, len(pb.Data))
		for i, v := range pb.Data {
			out[i] = int16(v)
		}
	}

	return out, int(dec.NumChans), int(dec.SampleRate), nil
}

func decodeMP3(r io.Reader) ([]int16, int, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, apperr.Wrap(apperr.KindUnsupportedFormat, "audioconv.mp3", "invalid mp3 stream", err)
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, 0, 0, apperr.Wrap(apperr.KindUnsupportedFormat, "audioconv.mp3", "decode mp3 frames", err)
	}

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	// go-mp3 always emits interleaved stereo.
	return bytesToInt16s(raw.Bytes()), 2, sr, nil
}

func decodeOggVorbis(r io.Reader) ([]int16, int, int, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, 0, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, 0, 0, errors.New("invalid ogg/vorbis stream")
	}

	out := make([]int16, len(pcm))
	for i, s := range pcm {
		out[i] = toInt16(float64(s) * 32768)
	}
	return out, format.Channels, format.SampleRate, nil
}

// EncodeWAV writes samples as a 16-bit PCM WAV file.
func EncodeWAV(w io.WriteSeeker, samples []int16, sampleRate, channels int) error {
	if channels <= 0 {
		channels = 1
	}

	enc := wav.NewEncoder(w, sampleRate, 16, channels, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}

	return enc.Close()
}

// helpers

func isMPEGFrameSync(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

func bytesToInt16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func int16sToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// downmixInterleaved averages each frame across channels. A trailing
// partial frame is dropped.
func downmixInterleaved(in []int16, channels int) []int16 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]int16, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = toInt16(sum / float64(channels))
	}
	return out
}

// resampleLinear evaluates the signal at floor(n*outSR/inSR) evenly spaced
// points over [0, n). Points beyond the last sample hold its value.
func resampleLinear(in []int16, inSR, outSR int) []int16 {
	if inSR == outSR {
		return in
	}
	n := len(in)
	outN := int(int64(n) * int64(outSR) / int64(inSR))
	if outN <= 0 {
		return []int16{}
	}

	out := make([]int16, outN)
	step := float64(n) / float64(outN)
	for i := 0; i < outN; i++ {
		src := float64(i) * step
		i0 := int(math.Floor(src))
		if i0 >= n-1 {
			out[i] = in[n-1]
			continue
		}
		a := src - float64(i0)
		out[i] = toInt16(float64(in[i0])*(1-a) + float64(in[i0+1])*a)
	}
	return out
}

// toInt16 rounds half to even and clamps to the int16 range.
func toInt16(x float64) int16 {
	return int16(clamp(math.RoundToEven(x), math.MinInt16, math.MaxInt16))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
