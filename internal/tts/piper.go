package tts

import (
	"fmt"
	"os/exec"

	"voxrelay/internal/apperr"
	"voxrelay/internal/voice"
)

// Piper builds command lines for the piper CLI.
type Piper struct {
	// Bin is an explicit executable. When empty, piper is looked up on PATH,
	// then python3 -m piper is used.
	Bin string

	lookPath func(string) (string, error)
}

func (p Piper) base() ([]string, error) {
	look := p.lookPath
	if look == nil {
		look = exec.LookPath
	}

	if p.Bin != "" {
		path, err := look(p.Bin)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindEngineUnavailable, "tts.piper",
				fmt.Sprintf("configured piper binary %q is not executable", p.Bin), err)
		}
		return []string{path}, nil
	}

	if path, err := look("piper"); err == nil {
		return []string{path}, nil
	}

	if py, err := look("python3"); err == nil {
		return []string{py, "-m", "piper"}, nil
	}

	return nil, apperr.New(apperr.KindEngineUnavailable, "tts.piper",
		"piper CLI is not available; install piper-tts to provide the 'piper' command")
}

// Command returns the invocation writing speech for stdin text to outPath.
func (p Piper) Command(m voice.Model, outPath, speaker string) (Command, error) {
	base, err := p.base()
	if err != nil {
		return Command{}, err
	}

	args := append([]string(nil), base[1:]...)
	args = append(args, "--model", m.ModelPath, "--output_file", outPath)
	if m.ConfigPath != "" {
		args = append(args, "--config", m.ConfigPath)
	}
	if speaker != "" {
		args = append(args, "--speaker", speaker)
	}

	return Command{Path: base[0], Args: args}, nil
}
