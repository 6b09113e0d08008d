// Package bus publishes relay events to a websocket message bus.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

// Event describes one processed request.
type Event struct {
	TranscriptionID string `json:"transcription_id"`
	Transcript      string `json:"transcript"`
	Reply           string `json:"reply"`
	Language        string `json:"language"`
	Voice           string `json:"voice"`
}

// Publisher accepts relay events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Bus is a websocket connection to the message hub. A connection that
// failed a write is dropped and redialed on the next write.
type Bus struct {
	name string
	url  string

	mu   sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, wsURL, name string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	b := &Bus{name: name, url: u.String()}
	if err := b.dial(ctx); err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", wsURL)
	return b, nil
}

func (b *Bus) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return err
	}
	b.conn = conn
	return nil
}

func (b *Bus) Write(ctx context.Context, m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		if err := b.dial(ctx); err != nil {
			return fmt.Errorf("redial bus: %w", err)
		}
		log.Info("Reconnected to bus", "url", b.url)
	}

	b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}

// Publish broadcasts ev as a "transcription" message.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	return b.Write(ctx, &Message{
		From:    b.name,
		To:      "*",
		Kind:    "transcription",
		Content: string(content),
	})
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := b.conn.Close()
	b.conn = nil
	return err
}
