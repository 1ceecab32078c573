package send_queue_service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"display-push-service/models"
	"display-push-service/service/pebble_service"
)

var errOffline = errors.New("offline")

func isOffline(err error) bool { return errors.Is(err, errOffline) }

type memoryQueueStore struct {
	mu    sync.Mutex
	saved []models.QueuedSendRequest
	saves int
}

func (m *memoryQueueStore) LoadQueue() ([]models.QueuedSendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.QueuedSendRequest, len(m.saved))
	copy(out, m.saved)
	return out, nil
}

func (m *memoryQueueStore) SaveQueue(items []models.QueuedSendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = make([]models.QueuedSendRequest, len(items))
	copy(m.saved, items)
	m.saves++
	return nil
}

// scriptedSender 按请求内容决定结果
type scriptedSender struct {
	mu       sync.Mutex
	attempts map[string]int
	order    []string
	result   func(name string, attempt int) error
}

func newScriptedSender(result func(name string, attempt int) error) *scriptedSender {
	return &scriptedSender{attempts: map[string]int{}, result: result}
}

func (s *scriptedSender) Send(_ context.Context, item *models.QueuedSendRequest) error {
	var body struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(item.Payload, &body)
	s.mu.Lock()
	s.attempts[body.Name]++
	n := s.attempts[body.Name]
	s.order = append(s.order, body.Name)
	s.mu.Unlock()
	return s.result(body.Name, n)
}

func enqueueNamed(t *testing.T, q *Queue, names ...string) {
	t.Helper()
	for _, n := range names {
		if _, err := q.Enqueue("/messages", map[string]string{"name": n}); err != nil {
			t.Fatalf("enqueue %s: %v", n, err)
		}
	}
}

func payloadNames(items []models.QueuedSendRequest) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(it.Payload, &body)
		names = append(names, body.Name)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnqueuePersistsEveryMutation(t *testing.T) {
	store := &memoryQueueStore{}
	q, err := New(store, newScriptedSender(func(string, int) error { return nil }), 5, isOffline)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	enqueueNamed(t, q, "a", "b")
	if store.saves != 2 || len(store.saved) != 2 {
		t.Fatalf("saves=%d saved=%d", store.saves, len(store.saved))
	}

	var succeeded []string
	res, err := q.Process(context.Background(), func(item models.QueuedSendRequest) {
		succeeded = append(succeeded, item.ID)
	}, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Succeeded != 2 || res.Remaining != 0 || len(succeeded) != 2 {
		t.Fatalf("unexpected pass %+v", res)
	}
	if len(store.saved) != 0 {
		t.Fatalf("persisted queue not emptied: %d", len(store.saved))
	}
}

func TestFailedItemMovesToTail(t *testing.T) {
	store := &memoryQueueStore{}
	sender := newScriptedSender(func(name string, _ int) error {
		if name == "a" {
			return errors.New("validation failed")
		}
		return nil
	})
	q, _ := New(store, sender, 5, isOffline)
	enqueueNamed(t, q, "a", "b", "c")

	res, err := q.Process(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !equalStrings(sender.order, []string{"a", "b", "c"}) {
		t.Fatalf("attempt order = %v", sender.order)
	}
	if res.Requeued != 1 || res.Succeeded != 2 || res.Remaining != 1 {
		t.Fatalf("unexpected pass %+v", res)
	}
	items := q.Items()
	if items[0].RetryCount != 1 || items[0].State != models.QueueItemRequeued || items[0].LastError == "" {
		t.Fatalf("requeued item = %+v", items[0])
	}
}

func TestItemDroppedAtRetryCeiling(t *testing.T) {
	store := &memoryQueueStore{}
	sender := newScriptedSender(func(string, int) error { return errors.New("rejected") })
	q, _ := New(store, sender, 3, isOffline)
	enqueueNamed(t, q, "a")

	var failures []models.QueuedSendRequest
	onFailure := func(item models.QueuedSendRequest, err error) { failures = append(failures, item) }
	for pass := 0; pass < 5; pass++ {
		if _, err := q.Process(context.Background(), nil, onFailure); err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
	}
	if sender.attempts["a"] != 3 {
		t.Fatalf("attempted %d times, want 3", sender.attempts["a"])
	}
	if len(failures) != 1 || failures[0].State != models.QueueItemDropped || failures[0].RetryCount != 3 {
		t.Fatalf("failures = %+v", failures)
	}
	if q.Len() != 0 || len(store.saved) != 0 {
		t.Fatal("dropped item still queued")
	}
}

func TestConnectivityFailureStopsPass(t *testing.T) {
	sender := newScriptedSender(func(name string, _ int) error {
		if name == "a" {
			return errOffline
		}
		return nil
	})
	q, _ := New(&memoryQueueStore{}, sender, 5, isOffline)
	enqueueNamed(t, q, "a", "b", "c")

	res, err := q.Process(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.Stopped || res.Attempted != 1 {
		t.Fatalf("pass should stop after first connectivity failure: %+v", res)
	}
	if got := payloadNames(q.Items()); !equalStrings(got, []string{"b", "c", "a"}) {
		t.Fatalf("queue order = %v", got)
	}
}

// 连续三次因断网失败，恢复后再尝试一次即成功
func TestFlushAfterReconnect(t *testing.T) {
	online := false
	sender := newScriptedSender(func(string, int) error {
		if !online {
			return errOffline
		}
		return nil
	})
	q, _ := New(&memoryQueueStore{}, sender, 5, isOffline)
	enqueueNamed(t, q, "a")

	for i := 0; i < 3; i++ {
		res, _ := q.Process(context.Background(), nil, nil)
		if res.Remaining != 1 {
			t.Fatalf("pass %d remaining = %d", i, res.Remaining)
		}
	}
	online = true
	var ok int
	res, err := q.Process(context.Background(), func(models.QueuedSendRequest) { ok++ }, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sender.attempts["a"] != 4 || ok != 1 || res.Remaining != 0 {
		t.Fatalf("attempts=%d ok=%d pass=%+v", sender.attempts["a"], ok, res)
	}
}

func TestItemsEnqueuedDuringPassWait(t *testing.T) {
	var q *Queue
	sender := newScriptedSender(func(name string, _ int) error {
		if name == "a" {
			if _, err := q.Enqueue("/messages", map[string]string{"name": "late"}); err != nil {
				return err
			}
		}
		return nil
	})
	q, _ = New(&memoryQueueStore{}, sender, 5, isOffline)
	enqueueNamed(t, q, "a")

	res, _ := q.Process(context.Background(), nil, nil)
	if res.Attempted != 1 || res.Remaining != 1 {
		t.Fatalf("unexpected pass %+v", res)
	}
	if sender.attempts["late"] != 0 {
		t.Fatal("item enqueued mid-pass was attempted in the same pass")
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	local := pebble_service.NewLocalStore(&pebble_service.Config{DBPath: dir})
	sender := newScriptedSender(func(string, int) error { return nil })

	q, err := New(local, sender, 5, isOffline)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	enqueueNamed(t, q, "first", "second", "third")
	if err := local.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := pebble_service.NewLocalStore(&pebble_service.Config{DBPath: dir})
	defer reopened.Close()
	q2, err := New(reopened, sender, 5, isOffline)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := payloadNames(q2.Items()); !equalStrings(got, []string{"first", "second", "third"}) {
		t.Fatalf("restored order = %v", got)
	}
	if _, err := q2.Process(context.Background(), nil, nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !equalStrings(sender.order, []string{"first", "second", "third"}) {
		t.Fatalf("flush order = %v", sender.order)
	}
}

func TestInFlightItemsResetOnLoad(t *testing.T) {
	store := &memoryQueueStore{saved: []models.QueuedSendRequest{
		{ID: "x", Endpoint: "/messages", Payload: json.RawMessage(`{}`), State: models.QueueItemInFlight},
	}}
	q, err := New(store, newScriptedSender(func(string, int) error { return nil }), 5, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if q.Items()[0].State != models.QueueItemPending {
		t.Fatalf("state = %s, want pending", q.Items()[0].State)
	}
}

func TestProcessDuringPassTriggersFollowUp(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sender := newScriptedSender(func(name string, _ int) error {
		if name == "a" {
			close(started)
			<-release
		}
		return nil
	})
	q, _ := New(&memoryQueueStore{}, sender, 5, isOffline)
	enqueueNamed(t, q, "a")

	done := make(chan PassResult, 1)
	go func() {
		res, _ := q.Process(context.Background(), nil, nil)
		done <- res
	}()
	<-started

	enqueueNamed(t, q, "b")
	concurrent, err := q.Process(context.Background(), nil, nil)
	if err != nil || concurrent.Attempted != 0 {
		t.Fatalf("concurrent call should return at once, got %+v, %v", concurrent, err)
	}
	close(release)

	res := <-done
	if res.Attempted != 2 || res.Succeeded != 2 || res.Remaining != 0 {
		t.Fatalf("unexpected pass %+v", res)
	}
	if q.Len() != 0 || !equalStrings(sender.order, []string{"a", "b"}) {
		t.Fatalf("order = %v, left = %d", sender.order, q.Len())
	}
}
