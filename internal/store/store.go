// Package store persists transcription records.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("transcription not found")

// Entry is what the pipeline hands over for persistence.
type Entry struct {
	TranscriptText   string
	OriginalFilename string
	SourceAudioPath  string
	TTSAudioPath     string
	Metadata         map[string]any
}

type Record struct {
	ID               string         `json:"id"`
	CreatedAt        string         `json:"created_at"`
	OriginalFilename string         `json:"original_filename"`
	TranscriptText   string         `json:"transcript_text"`
	TranscriptPath   string         `json:"transcript_path"`
	SourceAudioPath  *string        `json:"source_audio_path"`
	TTSAudioPath     *string        `json:"tts_audio_path"`
	Metadata         map[string]any `json:"metadata"`
}

type Store interface {
	Save(ctx context.Context, e Entry) (Record, error)
	Load(ctx context.Context, id string) (Record, error)
	Close() error
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// validID guards file lookups against path traversal.
func validID(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
