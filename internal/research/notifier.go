package research

import (
	"encoding/json"
	"sync"
)

// Event is a progress update for one analysis task, pushed to websocket
// subscribers as jobs move through their lifecycle.
type Event struct {
	TaskID   string          `json:"taskId"`
	Category Category        `json:"category"`
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Attempt  int             `json:"retry_count,omitempty"`
	Insights json.RawMessage `json:"insights,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Event statuses. The persisted record statuses plus an ephemeral retrying
// signal that never reaches the database.
const (
	EventProcessing = "processing"
	EventRetrying   = "retrying"
	EventCompleted  = "completed"
	EventError      = "error"
)

// Notifier fans task events out to in-process subscribers. Workers publish,
// websocket handlers subscribe. Publishing to a task nobody watches is a no-op.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewNotifier constructs a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers interest in a task and returns the event channel.
// Callers must Unsubscribe with the same channel when done.
func (n *Notifier) Subscribe(taskID string) chan Event {
	ch := make(chan Event, 8)
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[taskID]
	if !ok {
		set = make(map[chan Event]struct{})
		n.subs[taskID] = set
	}
	set[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel and closes it.
func (n *Notifier) Unsubscribe(taskID string, ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[taskID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(n.subs, taskID)
	}
	close(ch)
}

// Publish delivers the event to every subscriber of its task. Slow
// subscribers with full buffers are skipped rather than blocking the worker.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subs[ev.TaskID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
