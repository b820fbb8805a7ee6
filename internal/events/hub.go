// Package events carries extraction and generation progress from the running
// task to API clients. Tasks publish; consumers either subscribe to a channel
// or long-poll by sequence number.
package events

import (
	"context"
	"sync"
	"time"
)

// Event is one stage change of an extraction or generation task.
type Event struct {
	Sequence  uint64    `json:"seq"`
	BrandID   string    `json:"brand_id"`
	AssetID   string    `json:"asset_id,omitempty"`
	Task      string    `json:"task"`
	Stage     string    `json:"stage"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Task names.
const (
	TaskExtraction = "extraction"
	TaskGeneration = "generation"
)

// Terminal stages shared by both tasks.
const (
	StageComplete = "complete"
	StageError    = "error"
)

// Publisher is implemented by Hub and by test recorders.
type Publisher interface {
	Publish(Event)
}

// Hub keeps a bounded history of events and fans new ones out to subscribers.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	subs     map[*subscription]struct{}
}

type subscription struct {
	brandID string
	ch      chan Event
}

// NewHub constructs a hub holding at most capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &Hub{capacity: capacity, subs: make(map[*subscription]struct{})}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish stamps evt with the next sequence and delivers it. Subscribers that
// are not keeping up miss events rather than blocking the publisher; they can
// recover the history through Fetch.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	for sub := range h.subs {
		if sub.brandID != "" && sub.brandID != evt.BrandID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Subscribe returns a channel of future events for brandID (all brands when
// empty). The returned cancel func closes the channel.
func (h *Hub) Subscribe(brandID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscription{brandID: brandID, ch: make(chan Event, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
}

// Fetch returns buffered events for brandID with sequence greater than since.
// When wait is true it blocks until a matching event arrives or ctx ends.
func (h *Hub) Fetch(ctx context.Context, brandID string, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stop := make(chan struct{})
	defer close(stop)
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stop:
			}
		}()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(brandID, since, limit)
		if len(events) > 0 || !wait {
			return events, next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		since = next
		h.cond.Wait()
	}
}

// snapshotLocked returns matching events and the cursor to resume from. The
// cursor advances past non-matching events so waiters do not rescan them.
func (h *Hub) snapshotLocked(brandID string, since uint64, limit int) ([]Event, uint64) {
	var out []Event
	cursor := since
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		if len(out) >= limit {
			break
		}
		cursor = evt.Sequence
		if brandID != "" && evt.BrandID != brandID {
			continue
		}
		out = append(out, evt)
	}
	if len(out) < limit && h.nextSeq > cursor {
		cursor = h.nextSeq
	}
	return out, cursor
}
