package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"voxrelay/internal/apperr"
)

// FileStore keeps <id>.txt with the transcript and <id>.json with the record.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "store.file", "create transcription dir", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(_ context.Context, e Entry) (Record, error) {
	const op = "store.file.save"

	id := newID()
	transcriptPath := filepath.Join(s.dir, id+".txt")
	if err := os.WriteFile(transcriptPath, []byte(e.TranscriptText), 0o644); err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, op, "write transcript", err)
	}

	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	rec := Record{
		ID:               id,
		CreatedAt:        timestamp(),
		OriginalFilename: e.OriginalFilename,
		TranscriptText:   e.TranscriptText,
		TranscriptPath:   transcriptPath,
		SourceAudioPath:  optional(e.SourceAudioPath),
		TTSAudioPath:     optional(e.TTSAudioPath),
		Metadata:         meta,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, op, "encode record", err)
	}
	if err := os.WriteFile(s.jsonPath(id), data, 0o644); err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, op, "write record", err)
	}

	return rec, nil
}

func (s *FileStore) Load(_ context.Context, id string) (Record, error) {
	if !validID(id) {
		return Record{}, ErrNotFound
	}

	data, err := os.ReadFile(s.jsonPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, apperr.Wrap(apperr.KindStorage, "store.file.load", "read record", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, "store.file.load", fmt.Sprintf("decode record %s", id), err)
	}
	return rec, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) jsonPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}
