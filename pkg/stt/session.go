package stt

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"strings"
	"sync"

	"voxrelay/internal/apperr"
)

// ChunkSize is how many PCM bytes are handed to a recognizer per call.
const ChunkSize = 4000

// Engine is a loaded acoustic model shared by all requests.
type Engine interface {
	NewRecognizer(sampleRate int) (Recognizer, error)
	Close() error
}

// Recognizer consumes one utterance.
type Recognizer interface {
	AcceptWaveform(chunk []byte) error
	// FinalResult returns the recognizer payload; "text" holds the transcript.
	FinalResult() (map[string]any, error)
	Close()
}

// Loader constructs an Engine from a model location on disk.
type Loader func(modelPath string) (Engine, error)

type Result struct {
	Text     string
	Metadata map[string]any
}

// Session owns the process-wide engine. The engine is built on first use;
// a failed build is retried on the next call.
type Session struct {
	modelPath string
	load      Loader

	mu     sync.Mutex
	engine Engine
}

func NewSession(modelPath string, load Loader) *Session {
	return &Session{
		modelPath: modelPath,
		load:      load,
	}
}

func (s *Session) Engine() (Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return s.engine, nil
	}

	if _, err := os.Stat(s.modelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Newf(apperr.KindModelNotFound, "stt.load",
				"recognizer model not found at %q; point the model path setting at a downloaded model", s.modelPath)
		}
		return nil, apperr.Wrap(apperr.KindConfig, "stt.load", "stat recognizer model", err)
	}

	log.Info("Loading recognizer model", "path", s.modelPath)

	engine, err := s.load(s.modelPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "stt.load", "load recognizer model", err)
	}
	s.engine = engine

	return engine, nil
}

// Transcribe runs pcm (mono, 16-bit little endian) through a fresh recognizer.
func (s *Session) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	engine, err := s.Engine()
	if err != nil {
		return Result{}, err
	}

	rec, err := engine.NewRecognizer(sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("new recognizer: %w", err)
	}
	defer rec.Close()

	for off := 0; off < len(pcm); off += ChunkSize {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		end := min(off+ChunkSize, len(pcm))
		if err := rec.AcceptWaveform(pcm[off:end]); err != nil {
			return Result{}, fmt.Errorf("accept waveform: %w", err)
		}
	}

	payload, err := rec.FinalResult()
	if err != nil {
		return Result{}, fmt.Errorf("final result: %w", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	text, _ := payload["text"].(string)

	return Result{
		Text:     strings.TrimSpace(text),
		Metadata: payload,
	}, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}
