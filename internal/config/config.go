// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"voxrelay/internal/apperr"
)

type Config struct {
	HTTPAddr string

	TranscriptionDir string
	TTSOutputDir     string
	UploadDir        string
	KeepSourceAudio  bool

	VoiceModelDirs  []string
	PiperBin        string
	DefaultLanguage string

	RecognizerEngine string
	VoskModelPath    string
	WhisperModelPath string
	TargetSampleRate int
	MaxUploadBytes   int64

	StoreBackend string
	SQLitePath   string

	ReplyMode    string
	OpenAIKey    string
	OpenAIModel  string
	SocksProxy   string
	BusURL       string
	BusShardName string
}

const (
	EngineVosk    = "vosk"
	EngineWhisper = "whisper"

	StoreFile   = "file"
	StoreSQLite = "sqlite"

	ReplyEcho      = "echo"
	ReplyAssistant = "assistant"
)

// Load reads envFile (missing files are ignored) and then the environment.
// Relative paths are resolved against the working directory.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.KindConfig, "config.load", "read env file "+envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	const op = "config.env"

	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		HTTPAddr:         str("HTTP_ADDR", ":8000"),
		TranscriptionDir: absPath(str("TRANSCRIPTION_DIR", filepath.Join("data", "transcriptions"))),
		TTSOutputDir:     absPath(str("TTS_OUTPUT_DIR", filepath.Join("data", "tts"))),
		UploadDir:        absPath(str("UPLOAD_DIR", filepath.Join("data", "uploads"))),
		PiperBin:         str("PIPER_BIN", ""),
		DefaultLanguage:  strings.ToLower(str("DEFAULT_TTS_LANGUAGE", "en")),
		RecognizerEngine: strings.ToLower(str("RECOGNIZER_ENGINE", EngineVosk)),
		VoskModelPath:    absPath(str("VOSK_MODEL_PATH", filepath.Join("models", "vosk-model-small-en-us-0.15"))),
		WhisperModelPath: absPath(str("WHISPER_MODEL_PATH", filepath.Join("models", "ggml-base.bin"))),
		StoreBackend:     strings.ToLower(str("STORE_BACKEND", StoreFile)),
		SQLitePath:       absPath(str("SQLITE_PATH", filepath.Join("data", "voxrelay.db"))),
		ReplyMode:        strings.ToLower(str("REPLY_MODE", ReplyEcho)),
		OpenAIKey:        str("OPENAI_API_KEY", ""),
		OpenAIModel:      str("OPENAI_MODEL", "gpt-5-nano"),
		SocksProxy:       str("SOCKS_PROXY", ""),
		BusURL:           str("BUS_URL", ""),
		BusShardName:     str("BUS_SHARD", "voxrelay"),
	}

	var err error
	if cfg.KeepSourceAudio, err = parseBool(str("KEEP_SOURCE_AUDIO", "false")); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, op, "KEEP_SOURCE_AUDIO", err)
	}
	if cfg.TargetSampleRate, err = strconv.Atoi(str("TARGET_SAMPLE_RATE", "16000")); err != nil || cfg.TargetSampleRate <= 0 {
		return nil, apperr.Newf(apperr.KindConfig, op, "TARGET_SAMPLE_RATE must be a positive integer")
	}
	if cfg.MaxUploadBytes, err = strconv.ParseInt(str("MAX_AUDIO_UPLOAD_BYTES", strconv.Itoa(20*1024*1024)), 10, 64); err != nil || cfg.MaxUploadBytes <= 0 {
		return nil, apperr.Newf(apperr.KindConfig, op, "MAX_AUDIO_UPLOAD_BYTES must be a positive integer")
	}

	cfg.VoiceModelDirs = ParsePathList(getenv("PIPER_MODEL_DIRS"))
	if len(cfg.VoiceModelDirs) == 0 {
		cfg.VoiceModelDirs = []string{
			absPath(filepath.Join("models", "piper")),
			absPath("onnx"),
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	const op = "config.validate"

	switch c.RecognizerEngine {
	case EngineVosk, EngineWhisper:
	default:
		return apperr.Newf(apperr.KindConfig, op, "unknown RECOGNIZER_ENGINE %q", c.RecognizerEngine)
	}
	switch c.StoreBackend {
	case StoreFile, StoreSQLite:
	default:
		return apperr.Newf(apperr.KindConfig, op, "unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.ReplyMode {
	case ReplyEcho:
	case ReplyAssistant:
		if c.OpenAIKey == "" {
			return apperr.New(apperr.KindConfig, op, "REPLY_MODE=assistant requires OPENAI_API_KEY")
		}
	default:
		return apperr.Newf(apperr.KindConfig, op, "unknown REPLY_MODE %q", c.ReplyMode)
	}
	return nil
}

// RecognizerModelPath is the model location of the selected engine.
func (c *Config) RecognizerModelPath() string {
	if c.RecognizerEngine == EngineWhisper {
		return c.WhisperModelPath
	}
	return c.VoskModelPath
}

// Bootstrap creates the data directories and the default voice directories.
func (c *Config) Bootstrap() error {
	dirs := []string{c.TranscriptionDir, c.TTSOutputDir}
	if c.KeepSourceAudio {
		dirs = append(dirs, c.UploadDir)
	}
	if c.StoreBackend == StoreSQLite {
		dirs = append(dirs, filepath.Dir(c.SQLitePath))
	}
	dirs = append(dirs, c.VoiceModelDirs...)

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return apperr.Wrap(apperr.KindConfig, "config.bootstrap", fmt.Sprintf("create %s", d), err)
		}
	}
	return nil
}

// ParsePathList splits an OS path list, dropping blank entries.
func ParsePathList(raw string) []string {
	var out []string
	for _, entry := range filepath.SplitList(raw) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		out = append(out, absPath(expandHome(entry)))
	}
	return out
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
