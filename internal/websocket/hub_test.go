package websocket

import (
	"testing"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
)

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	restoreID := uuid.New()
	client := &Client{
		ID:       "client-1",
		UserID:   uuid.New(),
		Username: "tester",
		Room:     RestoreRoom(restoreID),
		Send:     make(chan *Message, 1),
		Hub:      hub,
	}

	hub.registerClient(client)
	if hub.GetRoomSize(RestoreRoom(restoreID)) != 1 {
		t.Fatalf("expected room size 1")
	}

	hub.unregisterClient(client)
	if hub.GetRoomSize(RestoreRoom(restoreID)) != 0 {
		t.Fatalf("expected room to be empty")
	}
}

func TestHubBroadcastToRoom(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:       "client-1",
		UserID:   uuid.New(),
		Username: "tester",
		Room:     "restore:abc",
		Send:     make(chan *Message, 1),
		Hub:      hub,
	}

	hub.registerClient(client)

	message := &Message{Type: "ping"}
	hub.broadcastToRoom(&BroadcastMessage{Room: "restore:abc", Message: message})

	select {
	case received := <-client.Send:
		if received.Type != "ping" {
			t.Fatalf("expected ping message")
		}
	default:
		t.Fatalf("expected message to be delivered")
	}
}

func TestPublishProgressReachesOnlyThatRestoresRoom(t *testing.T) {
	hub := NewHub()
	restoreID := uuid.New()
	otherID := uuid.New()

	watcher := &Client{
		ID:   "watcher",
		Room: RestoreRoom(restoreID),
		Send: make(chan *Message, 1),
		Hub:  hub,
	}
	bystander := &Client{
		ID:   "bystander",
		Room: RestoreRoom(otherID),
		Send: make(chan *Message, 1),
		Hub:  hub,
	}
	hub.registerClient(watcher)
	hub.registerClient(bystander)

	progress := &models.CloudRestoreProgress{
		RestoreID:       restoreID,
		Status:          models.RestoreStatusUploading,
		PercentComplete: 42,
	}
	// Drive the broadcast directly; Run is not started in unit tests.
	hub.broadcastToRoom(&BroadcastMessage{
		Room:    RestoreRoom(restoreID),
		Message: &Message{Type: "restore_progress", Payload: progress},
	})

	select {
	case received := <-watcher.Send:
		if received.Type != "restore_progress" {
			t.Fatalf("expected restore_progress, got %s", received.Type)
		}
		payload, ok := received.Payload.(*models.CloudRestoreProgress)
		if !ok || payload.PercentComplete != 42 {
			t.Fatalf("unexpected payload: %+v", received.Payload)
		}
	default:
		t.Fatalf("expected watcher to receive progress")
	}

	select {
	case msg := <-bystander.Send:
		t.Fatalf("bystander should not receive progress, got %+v", msg)
	default:
	}
}
