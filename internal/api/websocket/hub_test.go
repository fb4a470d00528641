package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/monosonet/modcore/internal/moderation/types"
)

func TestNewHub(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHubRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()

	<-ctx.Done()
}

func TestHubClientRegistration(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	assert.Equal(t, 0, hub.GetClientCount())

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, hub.GetClientCount())
}

func TestHubClientUnregistration(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.GetClientCount())

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.GetClientCount())
}

func TestHubBroadcastPipelineResult(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	result := types.PipelineResult{
		SignalID:   "sig-1",
		PipelineID: "pipe-1",
	}

	err := hub.BroadcastPipelineResult(result)
	assert.NoError(t, err)

	select {
	case msg := <-client.send:
		var decoded map[string]interface{}
		assert.NoError(t, json.Unmarshal(msg, &decoded))
		assert.Equal(t, "pipeline_result", decoded["type"])
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message, got none")
	}
}

func TestHubBroadcastRawEvent(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	payload := []byte(`{"type":"report.created","report_id":"abc"}`)
	err := hub.Broadcast(payload)
	assert.NoError(t, err)

	select {
	case msg := <-client.send:
		assert.Equal(t, payload, msg)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message, got none")
	}
}

func TestHubStop(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	go hub.Run()

	for i := 0; i < 3; i++ {
		client := &Client{send: make(chan []byte, 256)}
		hub.register <- client
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, hub.GetClientCount())

	hub.Stop()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, hub.GetClientCount())
}
