// Package pipeline runs one upload through recognition, reply composition,
// voice selection, synthesis and persistence.
package pipeline

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxrelay/internal/apperr"
	"voxrelay/internal/bus"
	"voxrelay/internal/lang"
	"voxrelay/internal/nlu"
	"voxrelay/internal/store"
	"voxrelay/internal/tts"
	"voxrelay/internal/voice"
	"voxrelay/pkg/audioconv"
	"voxrelay/pkg/stt"
)

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (stt.Result, error)
}

type VoiceResolver interface {
	Resolve(lang string) (voice.Model, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, m voice.Model, speaker string) (tts.Audio, error)
}

type Options struct {
	TargetRate int
	// UploadDir receives a copy of every upload when KeepSource is set.
	UploadDir  string
	KeepSource bool
}

type Deps struct {
	Recognizer Transcriber
	Composer   nlu.Composer
	Languages  *lang.Classifier
	Voices     VoiceResolver
	Synth      Synthesizer
	Store      store.Store
	Publisher  bus.Publisher
}

type Pipeline struct {
	opts Options
	deps Deps
}

type Upload struct {
	Filename string
	Data     []byte
	// Language forces the reply voice; empty means infer from the reply.
	Language string
	Speaker  string
}

type Outcome struct {
	Record     store.Record
	Transcript string
	Reply      string
	Language   string
	Voice      voice.Model
	Audio      tts.Audio
}

func New(opts Options, deps Deps) *Pipeline {
	if opts.TargetRate <= 0 {
		opts.TargetRate = audioconv.DefaultTargetRate
	}
	if deps.Composer == nil {
		deps.Composer = nlu.Echo{}
	}
	if deps.Languages == nil {
		deps.Languages = lang.New("")
	}
	if deps.Publisher == nil {
		deps.Publisher = bus.Nop{}
	}
	return &Pipeline{opts: opts, deps: deps}
}

func (p *Pipeline) Process(ctx context.Context, up Upload) (out Outcome, err error) {
	const op = "pipeline.process"
	start := time.Now()

	var artifacts []string
	defer func() {
		if err == nil {
			return
		}
		for _, path := range artifacts {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn("Failed to remove artifact", "path", path, "err", rmErr)
			}
		}
	}()

	if len(up.Data) == 0 {
		return Outcome{}, apperr.New(apperr.KindEmptyInput, op, "empty audio payload")
	}

	var sourcePath string
	if p.opts.KeepSource {
		sourcePath, err = p.keepSource(up)
		if err != nil {
			return Outcome{}, err
		}
		artifacts = append(artifacts, sourcePath)
		log.Debug("Kept source upload", "path", sourcePath)
	}

	rate, pcm, err := audioconv.Normalize(up.Data, p.opts.TargetRate)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("Normalized audio", "rate", rate, "bytes", len(pcm))

	res, err := p.deps.Recognizer.Transcribe(ctx, pcm, rate)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("Recognized speech", "text", res.Text)

	reply, err := p.deps.Composer.Compose(ctx, res.Text)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindComposeFailed, op, "compose reply", err)
	}
	if strings.TrimSpace(reply) == "" {
		return Outcome{}, apperr.New(apperr.KindEmptyInput, op, "cannot synthesize empty text")
	}

	code := p.deps.Languages.Resolve(up.Language, reply)

	model, err := p.deps.Voices.Resolve(code)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("Resolved voice", "lang", code, "voice", model)

	audio, err := p.deps.Synth.Synthesize(ctx, reply, model, up.Speaker)
	if err != nil {
		return Outcome{}, err
	}
	artifacts = append(artifacts, audio.Path)

	rec, err := p.deps.Store.Save(ctx, store.Entry{
		TranscriptText:   res.Text,
		OriginalFilename: up.Filename,
		SourceAudioPath:  sourcePath,
		TTSAudioPath:     audio.Path,
		Metadata: map[string]any{
			"recognizer": res.Metadata,
			"reply":      reply,
			"language":   code,
			"voice": map[string]any{
				"model":  model.ModelPath,
				"config": model.ConfigPath,
				"source": string(model.Source),
			},
		},
	})
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindStorage, op, "save record", err)
	}

	if pubErr := p.deps.Publisher.Publish(ctx, bus.Event{
		TranscriptionID: rec.ID,
		Transcript:      res.Text,
		Reply:           reply,
		Language:        code,
		Voice:           model.ModelPath,
	}); pubErr != nil {
		log.Warn("Failed to publish event", "id", rec.ID, "err", pubErr)
	}

	log.Info("Processed upload",
		"id", rec.ID,
		"file", up.Filename,
		"lang", code,
		"voice_source", model.Source,
		"took", time.Since(start),
	)

	return Outcome{
		Record:     rec,
		Transcript: res.Text,
		Reply:      reply,
		Language:   code,
		Voice:      model,
		Audio:      audio,
	}, nil
}

func (p *Pipeline) keepSource(up Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(up.Filename)))
	if ext == "" {
		ext = ".wav"
	}
	path := filepath.Join(p.opts.UploadDir, strings.ReplaceAll(uuid.NewString(), "-", "")+ext)

	if err := os.WriteFile(path, up.Data, 0o644); err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "pipeline.keep_source", "write source upload", err)
	}
	return path, nil
}
