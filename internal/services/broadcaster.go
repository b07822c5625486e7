package services

import (
	"sync"
	"time"

	"taixiu-game-backend/internal/models"
)

// Announcer is how the engine-side services talk to the presentation layer:
// round announcements for the group feed, alerts for the admins.
type Announcer interface {
	RoundOpened(rs models.RoundState)
	RoundResolved(res *models.RoundResult)
	RequestCreated(req *models.TransferRequest)
	Alert(msg string)
}

type EventType string

const (
	EventRoundOpened    EventType = "ROUND_OPENED"
	EventRoundResolved  EventType = "ROUND_RESOLVED"
	EventRequestCreated EventType = "REQUEST_CREATED"
	EventAlert          EventType = "ALERT"
)

type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// EventBus fans events out to subscribers (the websocket hub, tests). Slow
// subscribers drop events instead of blocking the scheduler.
type EventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

func (b *EventBus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subs[id] = ch
	return id, ch
}

func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *EventBus) Publish(evt Event) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *EventBus) RoundOpened(rs models.RoundState) {
	b.Publish(Event{Type: EventRoundOpened, Data: rs})
}

func (b *EventBus) RoundResolved(res *models.RoundResult) {
	b.Publish(Event{Type: EventRoundResolved, Data: res})
}

func (b *EventBus) RequestCreated(req *models.TransferRequest) {
	b.Publish(Event{Type: EventRequestCreated, Data: req})
}

func (b *EventBus) Alert(msg string) {
	b.Publish(Event{Type: EventAlert, Data: msg})
}
