// Package voice locates synthesis voice models on disk.
package voice

import (
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voxrelay/internal/apperr"
)

// ModelExt is the extension of voice model files.
const ModelExt = ".onnx"

type Source string

const (
	SourceOverride  Source = "override"
	SourceLangDir   Source = "language_dir"
	SourceAltDir    Source = "language_dir_underscore"
	SourceSubstring Source = "name_match"
	SourceGeneric   Source = "generic"
)

type Model struct {
	Language   string
	ModelPath  string
	ConfigPath string // empty when the engine should use model defaults
	Source     Source
}

// Overrides returns explicit model and config paths for a language code.
// Empty strings mean "not set".
type Overrides func(lang string) (model, config string)

// EnvOverrides reads PIPER_<LANG>_MODEL and PIPER_<LANG>_CONFIG.
func EnvOverrides(lang string) (string, string) {
	prefix := EnvPrefix(lang)
	return os.Getenv(prefix + "_MODEL"), os.Getenv(prefix + "_CONFIG")
}

func EnvPrefix(lang string) string {
	return "PIPER_" + strings.ToUpper(strings.ReplaceAll(lang, "-", "_"))
}

// strategy yields candidate model files for lang inside dir, unsorted.
type strategy struct {
	source Source
	find   func(dir, lang string) []string
}

var strategies = []strategy{
	{SourceLangDir, func(dir, lang string) []string {
		return modelFiles(filepath.Join(dir, lang), nil)
	}},
	{SourceAltDir, func(dir, lang string) []string {
		alt := strings.ReplaceAll(lang, "-", "_")
		if alt == lang {
			return nil
		}
		return modelFiles(filepath.Join(dir, alt), nil)
	}},
	{SourceSubstring, func(dir, lang string) []string {
		return modelFiles(dir, func(name string) bool { return strings.Contains(name, lang) })
	}},
	{SourceGeneric, func(dir, _ string) []string {
		return modelFiles(dir, nil)
	}},
}

type Resolver struct {
	dirs      []string
	overrides Overrides
}

// NewResolver searches dirs in the given order. A nil overrides disables
// explicit paths.
func NewResolver(dirs []string, overrides Overrides) *Resolver {
	if overrides == nil {
		overrides = func(string) (string, string) { return "", "" }
	}
	return &Resolver{
		dirs:      append([]string(nil), dirs...),
		overrides: overrides,
	}
}

// Resolve picks the voice for lang. The first source that yields a model
// wins; nothing is merged across directories.
func (r *Resolver) Resolve(lang string) (Model, error) {
	const op = "voice.resolve"

	modelOverride, configOverride := r.overrides(lang)

	if modelOverride != "" {
		if !exists(modelOverride) {
			return Model{}, apperr.Newf(apperr.KindModelNotFound, op,
				"configured voice model not found: %s", modelOverride)
		}
		return r.finish(lang, modelOverride, configOverride, SourceOverride)
	}

	visited := make(map[string]struct{}, len(r.dirs))
	for _, base := range r.dirs {
		key := canonicalDir(base)
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		if !isDir(base) {
			continue
		}

		for _, s := range strategies {
			candidates := s.find(base, lang)
			if len(candidates) == 0 {
				continue
			}
			sort.Strings(candidates)
			return r.finish(lang, candidates[0], configOverride, s.source)
		}
	}

	return Model{}, apperr.Newf(apperr.KindModelNotFound, op,
		"could not locate a voice model for language %q; set %s_MODEL to the model path", lang, EnvPrefix(lang))
}

func (r *Resolver) finish(lang, modelPath, configOverride string, source Source) (Model, error) {
	configPath, err := companionConfig(modelPath, configOverride)
	if err != nil {
		return Model{}, err
	}

	if source == SourceGeneric {
		log.Warn("No language specific voice, using generic model", "lang", lang, "model", modelPath)
	}

	return Model{
		Language:   lang,
		ModelPath:  modelPath,
		ConfigPath: configPath,
		Source:     source,
	}, nil
}

// companionConfig finds the metadata file next to a model. A missing file is
// not an error unless it was configured explicitly.
func companionConfig(modelPath, explicit string) (string, error) {
	if explicit != "" {
		if exists(explicit) {
			return explicit, nil
		}
		return "", apperr.Newf(apperr.KindModelNotFound, "voice.config",
			"configured voice metadata not found: %s", explicit)
	}

	stem := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	for _, candidate := range []string{
		stem + ".onnx.json",
		stem + ".json",
	} {
		if exists(candidate) {
			return candidate, nil
		}
	}

	return "", nil
}

// modelFiles lists regular *.onnx files in dir accepted by keep.
func modelFiles(dir string, keep func(name string) bool) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug("Cannot list voice directory", "dir", dir, "err", err)
		}
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ModelExt) {
			continue
		}
		if keep != nil && !keep(name) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out
}

func canonicalDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func (m Model) String() string {
	if m.ConfigPath == "" {
		return fmt.Sprintf("%s (%s)", m.ModelPath, m.Source)
	}
	return fmt.Sprintf("%s + %s (%s)", m.ModelPath, m.ConfigPath, m.Source)
}
