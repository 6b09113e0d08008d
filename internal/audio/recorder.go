package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrNoSpeech is returned when a capture ends without crossing the
// speech threshold.
var ErrNoSpeech = errors.New("no speech recorded")

type Options struct {
	SampleRate int
	// FrameSize is the number of samples per read.
	FrameSize   int
	SilenceRMS  float64
	SilenceHold time.Duration
	MaxLength   time.Duration
}

func DefaultOptions() Options {
	return Options{
		SampleRate:  16000,
		FrameSize:   320, // 20ms
		SilenceRMS:  0.015,
		SilenceHold: 600 * time.Millisecond,
		MaxLength:   10 * time.Second,
	}
}

type Recorder struct {
	opts Options
}

func NewRecorder(opts Options) *Recorder {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = def.FrameSize
	}
	if opts.SilenceRMS <= 0 {
		opts.SilenceRMS = def.SilenceRMS
	}
	if opts.SilenceHold <= 0 {
		opts.SilenceHold = def.SilenceHold
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	return &Recorder{opts: opts}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) SampleRate() int {
	return r.opts.SampleRate
}

// RecordAuto captures from the default input until speech is followed by
// SilenceHold of quiet, MaxLength elapses or ctx is done.
func (r *Recorder) RecordAuto(ctx context.Context) ([]int16, error) {
	buf := make([]float32, r.opts.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.opts.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	g := newGate(r.opts)
	for !g.done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		g.push(buf)
	}

	if !g.speaking {
		return nil, ErrNoSpeech
	}
	return g.out, nil
}

// gate keeps frames from the first loud frame on and closes after a run of
// quiet frames.
type gate struct {
	threshold   float64
	holdFrames  int
	maxFrames   int
	frames      int
	quietFrames int
	speaking    bool
	closed      bool
	out         []int16
}

func newGate(opts Options) *gate {
	frameDur := time.Duration(opts.FrameSize) * time.Second / time.Duration(opts.SampleRate)
	hold := int(opts.SilenceHold / frameDur)
	if hold < 1 {
		hold = 1
	}
	return &gate{
		threshold:  opts.SilenceRMS,
		holdFrames: hold,
		maxFrames:  int(opts.MaxLength / frameDur),
		out:        make([]int16, 0, opts.SampleRate*3),
	}
}

func (g *gate) done() bool {
	return g.closed || g.frames >= g.maxFrames
}

func (g *gate) push(frame []float32) {
	g.frames++

	if frameRMS(frame) > g.threshold {
		g.speaking = true
		g.quietFrames = 0
		g.out = appendPCM(g.out, frame)
		return
	}

	if !g.speaking {
		return
	}

	g.quietFrames++
	if g.quietFrames >= g.holdFrames {
		g.closed = true
		return
	}
	g.out = appendPCM(g.out, frame)
}

func appendPCM(dst []int16, frame []float32) []int16 {
	for _, x := range frame {
		v := math.Round(float64(x) * 32767)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		dst = append(dst, int16(v))
	}
	return dst
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
