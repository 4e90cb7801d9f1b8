package eventbus

import (
	"context"
	"sync"
	"time"
)

// 领域事件类型（SSE 事件名）
const (
	EventDefended              = "event_defended"
	EventClassificationCreated = "classification_created"
	EventProbeLaunched         = "probe_launched"
)

// DefendedPayload 周事件防御成功
type DefendedPayload struct {
	EventID   int64  `json:"event_id"`
	WeekStart string `json:"week_start"`
}

// ClassificationCreatedPayload 新分类提交
type ClassificationCreatedPayload struct {
	ClassificationID int64 `json:"classification_id"`
	AnomalyID        int64 `json:"anomaly_id"`
}

// ProbeLaunchedPayload 探针发射
type ProbeLaunchedPayload struct {
	EventID int64  `json:"event_id"`
	UserID  string `json:"user_id"`
	Count   int    `json:"count"`
}

// Event 推送给前端的领域事件
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Defended 构造防御成功事件
func Defended(eventID int64, weekStart string) Event {
	return Event{Type: EventDefended, Data: DefendedPayload{EventID: eventID, WeekStart: weekStart}}
}

// ClassificationCreated 构造新分类事件
func ClassificationCreated(classificationID, anomalyID int64) Event {
	return Event{Type: EventClassificationCreated, Data: ClassificationCreatedPayload{
		ClassificationID: classificationID,
		AnomalyID:        anomalyID,
	}}
}

// ProbeLaunched 构造探针发射事件
func ProbeLaunched(eventID int64, userID string, count int) Event {
	return Event{Type: EventProbeLaunched, Data: ProbeLaunchedPayload{
		EventID: eventID,
		UserID:  userID,
		Count:   count,
	}}
}

// Hub 进程内发布订阅，用于 SSE 推送
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Publish 广播事件
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞写路径
		}
	}
}

// Subscribe 订阅事件，ctx 结束时自动退订
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}
