package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/process", r.URL.Path)

		f, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)

		assert.Equal(t, "rec.wav", header.Filename)
		assert.Equal(t, "RIFF", string(data))
		assert.Equal(t, "es", r.FormValue("language"))
		assert.Empty(t, r.FormValue("speaker"))

		json.NewEncoder(w).Encode(Response{
			TranscriptionID: "abc",
			Transcript:      "hola",
			AudioBase64:     base64.StdEncoding.EncodeToString([]byte("reply")),
		})
	}))
	defer srv.Close()

	resp, err := New(srv.URL+"/", nil).Process(context.Background(), Request{
		Filename: "rec.wav",
		Data:     []byte("RIFF"),
		Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.TranscriptionID)

	audio, err := resp.Audio()
	require.NoError(t, err)
	assert.Equal(t, "reply", string(audio))
}

func TestProcess_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Empty audio payload."}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Process(context.Background(), Request{Filename: "a.wav"})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "Empty audio payload.", se.Detail)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL, nil).Health(context.Background()))
}
