package voice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxrelay/internal/apperr"
)

func touch(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func staticOverrides(model, config string) Overrides {
	return func(string) (string, string) { return model, config }
}

func TestResolve_BucketPriority(t *testing.T) {
	base := t.TempDir()
	generic := touch(t, base, "aaa-generic.onnx")
	named := touch(t, base, "voice-es-carla.onnx")
	inDir := touch(t, base, "es", "zeta.onnx")

	r := NewResolver([]string{base}, nil)

	m, err := r.Resolve("es")
	require.NoError(t, err)
	assert.Equal(t, inDir, m.ModelPath)
	assert.Equal(t, SourceLangDir, m.Source)

	require.NoError(t, os.RemoveAll(filepath.Join(base, "es")))
	m, err = r.Resolve("es")
	require.NoError(t, err)
	assert.Equal(t, named, m.ModelPath)
	assert.Equal(t, SourceSubstring, m.Source)

	require.NoError(t, os.Remove(named))
	m, err = r.Resolve("es")
	require.NoError(t, err)
	assert.Equal(t, generic, m.ModelPath)
	assert.Equal(t, SourceGeneric, m.Source)
}

func TestResolve_UnderscoreDir(t *testing.T) {
	base := t.TempDir()
	want := touch(t, base, "pt_br", "faber.onnx")

	m, err := NewResolver([]string{base}, nil).Resolve("pt-br")
	require.NoError(t, err)
	assert.Equal(t, want, m.ModelPath)
	assert.Equal(t, SourceAltDir, m.Source)
}

func TestResolve_SortedWithinBucket(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "en", "c.onnx")
	want := touch(t, base, "en", "a.onnx")
	touch(t, base, "en", "b.onnx")
	touch(t, base, "en", "a.onnx.json")

	m, err := NewResolver([]string{base}, nil).Resolve("en")
	require.NoError(t, err)
	assert.Equal(t, want, m.ModelPath)
	assert.Equal(t, want+".json", m.ConfigPath)
}

func TestResolve_DirectoryPriority(t *testing.T) {
	local := t.TempDir()
	packaged := t.TempDir()
	want := touch(t, local, "generic.onnx")
	touch(t, packaged, "en", "lessard.onnx")

	m, err := NewResolver([]string{filepath.Join(t.TempDir(), "missing"), local, packaged}, nil).Resolve("en")
	require.NoError(t, err)
	assert.Equal(t, want, m.ModelPath, "an earlier directory shadows later ones, even with a generic match")
}

func TestResolve_DuplicateDirsVisitedOnce(t *testing.T) {
	base := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(base, link))

	r := NewResolver([]string{base, base + string(filepath.Separator), link}, nil)
	_, err := r.Resolve("en")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindModelNotFound))
}

func TestResolve_NothingFound(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "readme.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "dir.onnx"), 0o755))

	_, err := NewResolver([]string{base}, nil).Resolve("es")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindModelNotFound))
	assert.Contains(t, err.Error(), "PIPER_ES_MODEL")
}

func TestResolve_MissingOverrideIsNeverSkipped(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "en", "good.onnx")

	r := NewResolver([]string{base}, staticOverrides(filepath.Join(base, "nope.onnx"), ""))
	_, err := r.Resolve("en")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindModelNotFound))
}

func TestResolve_Override(t *testing.T) {
	dir := t.TempDir()
	model := touch(t, dir, "custom.bin")
	config := touch(t, dir, "custom.onnx.json")

	m, err := NewResolver(nil, staticOverrides(model, "")).Resolve("en")
	require.NoError(t, err)
	assert.Equal(t, model, m.ModelPath)
	assert.Equal(t, config, m.ConfigPath)
	assert.Equal(t, SourceOverride, m.Source)
}

func TestResolve_MissingConfigOverrideFails(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "en", "good.onnx")

	r := NewResolver([]string{base}, staticOverrides("", filepath.Join(base, "missing.json")))
	_, err := r.Resolve("en")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindModelNotFound))
}

func TestResolve_ConfigOverrideWithSearchedModel(t *testing.T) {
	base := t.TempDir()
	model := touch(t, base, "en", "good.onnx")
	config := touch(t, t.TempDir(), "shared.json")

	m, err := NewResolver([]string{base}, staticOverrides("", config)).Resolve("en")
	require.NoError(t, err)
	assert.Equal(t, model, m.ModelPath)
	assert.Equal(t, config, m.ConfigPath)
}

func TestCompanionConfig(t *testing.T) {
	t.Run("double extension preferred", func(t *testing.T) {
		dir := t.TempDir()
		model := touch(t, dir, "v.onnx")
		want := touch(t, dir, "v.onnx.json")
		touch(t, dir, "v.json")

		got, err := companionConfig(model, "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("single extension", func(t *testing.T) {
		dir := t.TempDir()
		model := touch(t, dir, "v.onnx")
		want := touch(t, dir, "v.json")

		got, err := companionConfig(model, "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("suffix replaced not appended", func(t *testing.T) {
		dir := t.TempDir()
		model := touch(t, dir, "v.bin")
		touch(t, dir, "v.bin.json")
		want := touch(t, dir, "v.json")

		got, err := companionConfig(model, "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("appended suffix is ignored", func(t *testing.T) {
		model := touch(t, t.TempDir(), "v.bin")
		touch(t, filepath.Dir(model), "v.bin.json")

		got, err := companionConfig(model, "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("none", func(t *testing.T) {
		model := touch(t, t.TempDir(), "v.onnx")

		got, err := companionConfig(model, "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PIPER_PT_BR_MODEL", "/voices/pt.onnx")
	t.Setenv("PIPER_PT_BR_CONFIG", "/voices/pt.json")

	model, config := EnvOverrides("pt-br")
	assert.Equal(t, "/voices/pt.onnx", model)
	assert.Equal(t, "/voices/pt.json", config)
}
