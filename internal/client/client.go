// Package client submits recordings to a voxrelay server.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type Request struct {
	Filename string
	Data     []byte
	Language string
	Speaker  string
}

type Response struct {
	TranscriptionID string `json:"transcription_id"`
	Transcript      string `json:"transcript"`
	Reply           string `json:"reply"`
	Language        string `json:"language"`
	AudioMIMEType   string `json:"audio_mime_type"`
	AudioBase64     string `json:"audio_base64"`
}

// Audio decodes the synthesized reply.
func (r Response) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.AudioBase64)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Detail)
}

func (c *Client) Process(ctx context.Context, req Request) (Response, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return Response{}, err
	}
	if _, err := part.Write(req.Data); err != nil {
		return Response{}, err
	}
	for k, v := range map[string]string{"language": req.Language, "speaker": req.Speaker} {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return Response{}, err
		}
	}
	if err := w.Close(); err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/process", &body)
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		var detail struct {
			Detail string `json:"detail"`
		}
		json.Unmarshal(raw, &detail)
		return Response{}, &StatusError{Code: resp.StatusCode, Detail: detail.Detail}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Health reports whether the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
