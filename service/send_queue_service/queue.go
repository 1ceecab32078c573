package send_queue_service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"display-push-service/models"

	"github.com/google/uuid"
)

const DefaultMaxRetries = 5

// Persister 队列的持久化，每次变更后整体写入
type Persister interface {
	LoadQueue() ([]models.QueuedSendRequest, error)
	SaveQueue(items []models.QueuedSendRequest) error
}

// Sender 实际发送一条排队请求
type Sender interface {
	Send(ctx context.Context, item *models.QueuedSendRequest) error
}

type (
	SuccessFunc func(item models.QueuedSendRequest)
	FailureFunc func(item models.QueuedSendRequest, err error)
)

// PassResult 一轮处理的统计
type PassResult struct {
	Attempted int  `json:"attempted"`
	Succeeded int  `json:"succeeded"`
	Requeued  int  `json:"requeued"`
	Dropped   int  `json:"dropped"`
	Stopped   bool `json:"stopped"` // 因连接问题提前结束
	Remaining int  `json:"remaining"`
}

// Queue is the durable offline send queue. Items are attempted one at a time,
// head first; a failed item goes to the tail until it has used up maxRetries attempts.
type Queue struct {
	store          Persister
	sender         Sender
	maxRetries     int
	isConnectivity func(error) bool
	now            func() time.Time

	mu         sync.Mutex
	items      []models.QueuedSendRequest
	processing bool
	rerun      bool
}

// New loads any persisted items. Items caught in flight by a crash go back to pending.
func New(store Persister, sender Sender, maxRetries int, isConnectivity func(error) bool) (*Queue, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if isConnectivity == nil {
		isConnectivity = func(error) bool { return false }
	}
	items, err := store.LoadQueue()
	if err != nil {
		return nil, fmt.Errorf("load send queue: %w", err)
	}
	for i := range items {
		if items[i].State == models.QueueItemInFlight {
			items[i].State = models.QueueItemPending
		}
	}
	if len(items) > 0 {
		log.Printf("📦 离线队列恢复 %d 条待发送请求", len(items))
	}
	return &Queue{
		store:          store,
		sender:         sender,
		maxRetries:     maxRetries,
		isConnectivity: isConnectivity,
		now:            time.Now,
		items:          items,
	}, nil
}

// Enqueue appends a request for endpoint and persists the queue before returning.
func (q *Queue) Enqueue(endpoint string, payload interface{}) (*models.QueuedSendRequest, error) {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode queued payload: %w", err)
		}
		raw = b
	}
	item := models.QueuedSendRequest{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		Payload:   raw,
		CreatedAt: q.now(),
		State:     models.QueueItemPending,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	if err := q.persistLocked(); err != nil {
		q.items = q.items[:len(q.items)-1]
		return nil, err
	}
	log.Printf("📥 请求已加入离线队列: id=%s endpoint=%s, 队列长度=%d", item.ID, endpoint, len(q.items))
	return &item, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items 队列快照
func (q *Queue) Items() []models.QueuedSendRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedSendRequest, len(q.items))
	copy(out, q.items)
	return out
}

// Process runs one pass over the queue. Each item present when the pass starts is
// attempted at most once; items enqueued during the pass wait for the next one.
// A connectivity failure ends the pass early. A call made while a pass is running
// returns immediately and makes the running call start another pass when it ends.
func (q *Queue) Process(ctx context.Context, onSuccess SuccessFunc, onFailure FailureFunc) (result PassResult, err error) {
	q.mu.Lock()
	if q.processing {
		q.rerun = true
		result.Remaining = len(q.items)
		q.mu.Unlock()
		return result, nil
	}
	q.processing = true
	q.rerun = false
	budget := len(q.items)
	q.mu.Unlock()

	for {
		stopped, passErr := q.pass(ctx, budget, &result, onSuccess, onFailure)

		q.mu.Lock()
		if passErr != nil || stopped || !q.rerun || len(q.items) == 0 {
			q.processing = false
			q.rerun = false
			result.Remaining = len(q.items)
			q.mu.Unlock()
			return result, passErr
		}
		q.rerun = false
		budget = len(q.items)
		q.mu.Unlock()
		log.Printf("🔁 处理期间有新的请求，继续下一轮 (%d 条)", budget)
	}
}

func (q *Queue) pass(ctx context.Context, budget int, result *PassResult, onSuccess SuccessFunc, onFailure FailureFunc) (stopped bool, err error) {
	for i := 0; i < budget; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			break
		}
		q.items[0].State = models.QueueItemInFlight
		item := q.items[0]
		q.mu.Unlock()

		result.Attempted++
		sendErr := q.sender.Send(ctx, &item)

		settled, persistErr := q.settle(item.ID, sendErr)
		if persistErr != nil {
			return false, persistErr
		}
		switch settled.State {
		case models.QueueItemDone:
			result.Succeeded++
			log.Printf("✅ 离线请求发送成功: id=%s", settled.ID)
			if onSuccess != nil {
				onSuccess(settled)
			}
		case models.QueueItemDropped:
			result.Dropped++
			log.Printf("❌ 离线请求 %s 已尝试 %d 次，放弃: %v", settled.ID, settled.RetryCount, sendErr)
			if onFailure != nil {
				onFailure(settled, sendErr)
			}
		case models.QueueItemRequeued:
			result.Requeued++
			log.Printf("🔁 离线请求 %s 第 %d 次失败，移至队尾: %v", settled.ID, settled.RetryCount, sendErr)
		}

		if sendErr != nil && q.isConnectivity(sendErr) {
			log.Printf("⚠️ 服务端不可达，停止本轮队列处理")
			result.Stopped = true
			return true, nil
		}
	}
	return false, nil
}

// settle applies the outcome of one attempt to the item and persists the queue.
// The returned copy carries the terminal or requeued state.
func (q *Queue) settle(id string, sendErr error) (models.QueuedSendRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return models.QueuedSendRequest{ID: id, State: models.QueueItemDone}, nil
	}
	current := q.items[idx]
	q.items = append(q.items[:idx], q.items[idx+1:]...)

	if sendErr == nil {
		current.State = models.QueueItemDone
	} else {
		current.RetryCount++
		current.LastError = sendErr.Error()
		if current.RetryCount >= q.maxRetries {
			current.State = models.QueueItemDropped
		} else {
			current.State = models.QueueItemRequeued
			q.items = append(q.items, current)
		}
	}
	return current, q.persistLocked()
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) persistLocked() error {
	if err := q.store.SaveQueue(q.items); err != nil {
		return fmt.Errorf("persist send queue: %w", err)
	}
	return nil
}
