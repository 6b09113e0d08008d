package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"voxrelay/internal/apperr"
)

type transcription struct {
	ID               string `gorm:"primaryKey;size:32"`
	CreatedAt        time.Time
	OriginalFilename string
	TranscriptText   string
	TranscriptPath   string
	SourceAudioPath  *string
	TTSAudioPath     *string
	Metadata         datatypes.JSON
}

// SQLStore keeps records in a database; transcripts are still written as
// text files next to it so TranscriptPath stays meaningful.
type SQLStore struct {
	db            *gorm.DB
	transcriptDir string
}

// OpenSQLite opens (and migrates) a SQLite database at path.
func OpenSQLite(path, transcriptDir string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "store.sqlite.open", "open database", err)
	}
	return NewSQLStore(db, transcriptDir)
}

func NewSQLStore(db *gorm.DB, transcriptDir string) (*SQLStore, error) {
	const op = "store.sqlite"

	if db == nil {
		return nil, apperr.New(apperr.KindStorage, op, "sql store requires a database handle")
	}
	if err := db.AutoMigrate(&transcription{}); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, op, "migrate", err)
	}
	if err := os.MkdirAll(transcriptDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, op, "create transcription dir", err)
	}
	return &SQLStore{db: db, transcriptDir: transcriptDir}, nil
}

func (s *SQLStore) Save(ctx context.Context, e Entry) (Record, error) {
	const op = "store.sqlite.save"

	id := newID()
	transcriptPath := filepath.Join(s.transcriptDir, id+".txt")
	if err := os.WriteFile(transcriptPath, []byte(e.TranscriptText), 0o644); err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, op, "write transcript", err)
	}

	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, op, "encode metadata", err)
	}

	row := &transcription{
		ID:               id,
		CreatedAt:        time.Now().UTC(),
		OriginalFilename: e.OriginalFilename,
		TranscriptText:   e.TranscriptText,
		TranscriptPath:   transcriptPath,
		SourceAudioPath:  optional(e.SourceAudioPath),
		TTSAudioPath:     optional(e.TTSAudioPath),
		Metadata:         datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		os.Remove(transcriptPath)
		return Record{}, apperr.Wrap(apperr.KindStorage, op, "insert record", err)
	}

	return row.record(meta), nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (Record, error) {
	var row transcription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, apperr.Wrap(apperr.KindStorage, "store.sqlite.load", "query record", err)
	}

	meta := map[string]any{}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return Record{}, apperr.Wrap(apperr.KindStorage, "store.sqlite.load", "decode metadata", err)
		}
	}
	return row.record(meta), nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (t *transcription) record(meta map[string]any) Record {
	return Record{
		ID:               t.ID,
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339Nano),
		OriginalFilename: t.OriginalFilename,
		TranscriptText:   t.TranscriptText,
		TranscriptPath:   t.TranscriptPath,
		SourceAudioPath:  t.SourceAudioPath,
		TTSAudioPath:     t.TTSAudioPath,
		Metadata:         meta,
	}
}
