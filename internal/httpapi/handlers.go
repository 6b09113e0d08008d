package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"voxrelay/internal/apperr"
	"voxrelay/internal/pipeline"
	"voxrelay/internal/store"
)

const audioMIME = "audio/wav"

type processResponse struct {
	TranscriptionID string `json:"transcription_id"`
	Transcript      string `json:"transcript"`
	Reply           string `json:"reply"`
	Language        string `json:"language"`
	AudioMIMEType   string `json:"audio_mime_type"`
	AudioBase64     string `json:"audio_base64"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) process(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "Audio file too large.", err)
			return
		}
		fail(c, http.StatusBadRequest, "Missing filename.", err)
		return
	}
	if header.Filename == "" {
		fail(c, http.StatusBadRequest, "Missing filename.", nil)
		return
	}
	if header.Size > s.maxUpload {
		fail(c, http.StatusRequestEntityTooLarge, "Audio file too large.", nil)
		return
	}

	f, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Unreadable upload.", err)
		return
	}
	defer f.Close()

	payload, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		fail(c, http.StatusBadRequest, "Unreadable upload.", err)
		return
	}
	if len(payload) == 0 {
		fail(c, http.StatusBadRequest, "Empty audio payload.", nil)
		return
	}
	if int64(len(payload)) > s.maxUpload {
		fail(c, http.StatusRequestEntityTooLarge, "Audio file too large.", nil)
		return
	}

	out, err := s.proc.Process(c.Request.Context(), pipeline.Upload{
		Filename: header.Filename,
		Data:     payload,
		Language: c.PostForm("language"),
		Speaker:  c.PostForm("speaker"),
	})
	if err != nil {
		fail(c, StatusFor(err), err.Error(), err)
		return
	}

	c.JSON(http.StatusOK, processResponse{
		TranscriptionID: out.Record.ID,
		Transcript:      out.Transcript,
		Reply:           out.Reply,
		Language:        out.Language,
		AudioMIMEType:   audioMIME,
		AudioBase64:     base64.StdEncoding.EncodeToString(out.Audio.Data),
	})
}

func (s *Server) transcription(c *gin.Context) {
	rec, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) transcriptionAudio(c *gin.Context) {
	rec, ok := s.load(c)
	if !ok {
		return
	}
	if rec.TTSAudioPath == nil {
		fail(c, http.StatusNotFound, "No synthesized audio for this transcription.", nil)
		return
	}
	if _, err := os.Stat(*rec.TTSAudioPath); err != nil {
		fail(c, http.StatusNotFound, "Synthesized audio is no longer available.", err)
		return
	}

	c.Header("Content-Type", audioMIME)
	c.File(*rec.TTSAudioPath)
}

func (s *Server) load(c *gin.Context) (store.Record, bool) {
	rec, err := s.store.Load(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Transcription not found.", nil)
		return store.Record{}, false
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load transcription.", err)
		return store.Record{}, false
	}
	return rec, true
}

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case apperr.IsInput(err):
		return http.StatusBadRequest
	case apperr.IsKind(err, apperr.KindSynthesisFailed), apperr.IsKind(err, apperr.KindComposeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, detail string, err error) {
	if err != nil {
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
