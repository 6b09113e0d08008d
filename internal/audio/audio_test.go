package audio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(n int, v float32) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestGate(t *testing.T) {
	opts := DefaultOptions()
	g := newGate(opts)

	// leading silence is dropped
	for i := 0; i < 5; i++ {
		g.push(frame(opts.FrameSize, 0))
	}
	assert.False(t, g.speaking)
	assert.Empty(t, g.out)

	g.push(frame(opts.FrameSize, 0.5))
	g.push(frame(opts.FrameSize, 0.5))
	assert.True(t, g.speaking)

	// 600ms hold at 20ms frames closes on the 30th quiet frame
	for i := 0; i < 29; i++ {
		g.push(frame(opts.FrameSize, 0))
		require.False(t, g.done())
	}
	g.push(frame(opts.FrameSize, 0))
	assert.True(t, g.done())

	assert.Len(t, g.out, (2+29)*opts.FrameSize)
	assert.Equal(t, int16(16384), g.out[0])
}

func TestGate_MaxLength(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLength = 100 * time.Millisecond
	g := newGate(opts)

	for !g.done() {
		g.push(frame(opts.FrameSize, 0.9))
	}
	assert.Equal(t, 5, g.frames)
}

func TestAppendPCM_Clamps(t *testing.T) {
	out := appendPCM(nil, []float32{-2, -1, 0, 1, 2})
	assert.Equal(t, []int16{-32768, -32767, 0, 32767, 32767}, out)
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	require.NoError(t, WriteWAV(path, []int16{1, -1, 300}, 16000))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1, 300}, buf.Data)
	assert.Equal(t, uint32(16000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
}

const pactlOutput = `Sink Input #42
	Driver: protocol-native.c
	Volume: front-left: 52429 /  80% / -5.81 dB,   front-right: 52429 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #7
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "voxrelay-agent"
Sink Input #x
	Volume: 10%
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(pactlOutput)
	assert.Equal(t, []Stream{
		{ID: 42, Volume: 80, AppName: "Firefox"},
		{ID: 7, Volume: 100, AppName: "voxrelay-agent"},
	}, got)

	assert.Nil(t, parseSinkInputs(""))
}

type fakeMixer struct {
	mu      sync.Mutex
	streams []Stream
	volumes map[int]int
}

func (m *fakeMixer) Streams(context.Context) ([]Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stream, len(m.streams))
	for i, s := range m.streams {
		if v, ok := m.volumes[s.ID]; ok {
			s.Volume = v
		}
		out[i] = s
	}
	return out, nil
}

func (m *fakeMixer) SetVolume(_ context.Context, id, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes[id] = percent
	return nil
}

func TestDucker(t *testing.T) {
	mixer := &fakeMixer{
		streams: []Stream{
			{ID: 1, Volume: 80, AppName: "Firefox"},
			{ID: 2, Volume: 100, AppName: "voxrelay-agent"},
			{ID: 3, Volume: 20, AppName: "mpv"},
		},
		volumes: map[int]int{},
	}
	d := NewDucker(mixer, []string{"voxrelay-agent"}, 15)
	ctx := context.Background()

	require.NoError(t, d.Duck(ctx, 0.25, 0))
	assert.Equal(t, 20, mixer.volumes[1])
	assert.Equal(t, 15, mixer.volumes[3], "never below the minimum volume")
	_, touched := mixer.volumes[2]
	assert.False(t, touched)

	// a second duck is a no-op
	require.NoError(t, d.Duck(ctx, 0.1, 0))
	assert.Equal(t, 20, mixer.volumes[1])

	require.NoError(t, d.Restore(ctx, 20*time.Millisecond))
	assert.Equal(t, 80, mixer.volumes[1])
	assert.Equal(t, 20, mixer.volumes[3])
}
