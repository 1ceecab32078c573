package pebble_service

import (
	"encoding/json"
	"testing"
	"time"

	"display-push-service/models"
)

func TestDeviceIDStableAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	store := NewLocalStore(&Config{DBPath: dir})
	first, err := store.DeviceID()
	if err != nil {
		t.Fatalf("device id: %v", err)
	}
	again, _ := store.DeviceID()
	if first == "" || first != again {
		t.Fatalf("device id changed within a run: %q vs %q", first, again)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewLocalStore(&Config{DBPath: dir})
	defer reopened.Close()
	afterRestart, err := reopened.DeviceID()
	if err != nil {
		t.Fatalf("device id after restart: %v", err)
	}
	if afterRestart != first {
		t.Fatalf("device id changed across restart: %q vs %q", first, afterRestart)
	}
}

func TestLastEndpoint(t *testing.T) {
	store := NewLocalStore(&Config{DBPath: t.TempDir()})
	defer store.Close()

	got, err := store.LastEndpoint()
	if err != nil || got != "" {
		t.Fatalf("empty endpoint = %q, %v", got, err)
	}
	if err := store.SetLastEndpoint("http://10.0.0.5:8080"); err != nil {
		t.Fatalf("set endpoint: %v", err)
	}
	got, _ = store.LastEndpoint()
	if got != "http://10.0.0.5:8080" {
		t.Fatalf("endpoint = %q", got)
	}
}

func TestQueuePersistsInOrder(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(&Config{DBPath: dir})

	items, err := store.LoadQueue()
	if err != nil || len(items) != 0 {
		t.Fatalf("empty queue = %v, %v", items, err)
	}

	now := time.Now().UTC()
	want := []models.QueuedSendRequest{
		{ID: "q1", Endpoint: "/messages", Payload: json.RawMessage(`{"content":"a"}`), CreatedAt: now, State: models.QueueItemPending},
		{ID: "q2", Endpoint: "/messages", Payload: json.RawMessage(`{"content":"b"}`), CreatedAt: now, RetryCount: 2, State: models.QueueItemRequeued},
	}
	if err := store.SaveQueue(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := store.ListCollections(); len(got) != 1 || got[0] != CollectionSendQueue {
		t.Fatalf("collections = %v", got)
	}
	store.Close()

	reopened := NewLocalStore(&Config{DBPath: dir})
	defer reopened.Close()
	got, err := reopened.LoadQueue()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "q1" || got[1].ID != "q2" || got[1].RetryCount != 2 {
		t.Fatalf("queue after restart = %+v", got)
	}
}
