package tts

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"voxrelay/internal/apperr"
	"voxrelay/internal/voice"
)

// CommandBuilder turns a resolved voice into an engine invocation.
type CommandBuilder interface {
	Command(m voice.Model, outPath, speaker string) (Command, error)
}

type Audio struct {
	Path string
	Data []byte
}

type Invoker struct {
	outDir  string
	builder CommandBuilder
	runner  Runner
}

func NewInvoker(outDir string, builder CommandBuilder, runner Runner) *Invoker {
	return &Invoker{
		outDir:  outDir,
		builder: builder,
		runner:  runner,
	}
}

// Synthesize speaks text with the given voice into a new WAV file under the
// output directory. speaker may be empty.
func (inv *Invoker) Synthesize(ctx context.Context, text string, m voice.Model, speaker string) (Audio, error) {
	const op = "tts.synthesize"

	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return Audio{}, apperr.New(apperr.KindEmptyInput, op, "cannot synthesize empty text")
	}

	outPath := filepath.Join(inv.outDir, strings.ReplaceAll(uuid.NewString(), "-", "")+".wav")

	cmd, err := inv.builder.Command(m, outPath, speaker)
	if err != nil {
		return Audio{}, apperr.Wrap(apperr.KindEngineUnavailable, op, "build synthesis command", err)
	}

	log.Debug("Running synthesis", "cmd", cmd.Path, "model", m.ModelPath, "out", outPath)

	res, err := inv.runner.Run(ctx, cmd, []byte(cleaned))
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return Audio{}, apperr.Wrap(apperr.KindEngineUnavailable, op,
				"synthesis engine not found; make sure piper is installed and on PATH", err)
		}
		return Audio{}, apperr.Wrap(apperr.KindSynthesisFailed, op, "run synthesis engine", err)
	}

	if res.ExitCode != 0 {
		diag := strings.TrimSpace(string(res.Stderr))
		if diag == "" {
			diag = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		os.Remove(outPath)
		return Audio{}, &apperr.Error{
			Kind:        apperr.KindSynthesisFailed,
			Op:          op,
			Message:     "piper synthesis failed",
			Diagnostics: diag,
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Audio{}, apperr.New(apperr.KindSynthesisFailed, op,
				"synthesis completed without creating an output file")
		}
		return Audio{}, apperr.Wrap(apperr.KindSynthesisFailed, op, "read synthesized audio", err)
	}
	if len(data) == 0 {
		os.Remove(outPath)
		return Audio{}, apperr.New(apperr.KindSynthesisFailed, op, "synthesis produced an empty file")
	}

	return Audio{Path: outPath, Data: data}, nil
}
