package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_Publish(t *testing.T) {
	received := make(chan Message, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var m Message
		if err := conn.ReadJSON(&m); err == nil {
			received <- m
		}
	}))
	defer srv.Close()

	b, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "voxrelay")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), Event{
		TranscriptionID: "abc",
		Transcript:      "hola",
		Reply:           "hola",
		Language:        "es",
	}))

	m := <-received
	assert.Equal(t, "voxrelay", m.From)
	assert.Equal(t, "transcription", m.Kind)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(m.Content), &ev))
	assert.Equal(t, "abc", ev.TranscriptionID)
	assert.Equal(t, "es", ev.Language)
}

func TestBus_RedialsAfterFailedWrite(t *testing.T) {
	received := make(chan Message, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			received <- m
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	b, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "voxrelay")
	require.NoError(t, err)
	defer b.Close()

	// break the underlying connection
	b.conn.Close()
	assert.Error(t, b.Publish(ctx, Event{TranscriptionID: "lost"}))

	require.NoError(t, b.Publish(ctx, Event{TranscriptionID: "after"}))
	m := <-received

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(m.Content), &ev))
	assert.Equal(t, "after", ev.TranscriptionID)
}

func TestBus_DialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/none", "voxrelay")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
