// Package whisper adapts whisper.cpp to stt.Engine.
package whisper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	wsp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"voxrelay/pkg/stt"
)

type Options struct {
	Language        string // e.g. "auto", "en", "es"
	TranslateToEn   bool   // if true, translate non-EN -> EN
	Threads         int    // <=0 => NumCPU()
	InitialPrompt   string // optional system/prefix prompt
	TokenTimestamps bool   // include per-token timestamps
	BeamSize        int    // 0 = default (greedy); >0 enables beam search
}

type Segment struct {
	Text     string  `json:"text"`
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
}

type whisperEngine struct {
	model wsp.Model // interface, not pointer
	opt   Options

	// whisper.cpp contexts share model state; one decode at a time.
	mu sync.Mutex
}

// Loader returns an stt.Loader for ggml whisper models.
func Loader(opt Options) stt.Loader {
	return func(modelPath string) (stt.Engine, error) {
		if modelPath == "" {
			return nil, errors.New("empty model path")
		}
		m, err := wsp.New(modelPath)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		return &whisperEngine{model: m, opt: opt}, nil
	}
}

func (e *whisperEngine) NewRecognizer(sampleRate int) (stt.Recognizer, error) {
	if sampleRate != wsp.SampleRate {
		return nil, fmt.Errorf("whisper needs %d Hz audio, got %d", wsp.SampleRate, sampleRate)
	}
	return &whisperRecognizer{engine: e}, nil
}

func (e *whisperEngine) Close() error {
	if e.model == nil {
		return nil
	}
	return e.model.Close()
}

type whisperRecognizer struct {
	engine  *whisperEngine
	samples []float32
}

// AcceptWaveform buffers the chunk; whisper decodes the utterance as a whole.
func (r *whisperRecognizer) AcceptWaveform(chunk []byte) error {
	for i := 0; i+1 < len(chunk); i += 2 {
		v := int16(binary.LittleEndian.Uint16(chunk[i:]))
		r.samples = append(r.samples, float32(v)/32768.0)
	}
	return nil
}

func (r *whisperRecognizer) FinalResult() (map[string]any, error) {
	if len(r.samples) == 0 {
		return map[string]any{"text": ""}, nil
	}

	e := r.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}

	opt := e.opt
	if opt.Language == "" {
		opt.Language = "auto"
	}
	if err := wctx.SetLanguage(opt.Language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(opt.TranslateToEn)

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.TokenTimestamps {
		wctx.SetTokenTimestamps(true)
	}
	if opt.BeamSize > 0 {
		wctx.SetBeamSize(opt.BeamSize)
	}
	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}

	if err := wctx.Process(r.samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	var (
		segs  []Segment
		parts []string
	)
	for {
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return map[string]any{
		"text":     strings.Join(parts, " "),
		"segments": segs,
		"language": lang,
	}, nil
}

func (r *whisperRecognizer) Close() {
	r.samples = nil
}
