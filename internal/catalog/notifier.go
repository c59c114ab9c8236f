package catalog

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// ChangeEvent is published after overrides for a category are written.
type ChangeEvent struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
}

type subscription struct {
	cat Category // empty matches every category
	ch  chan ChangeEvent
}

// Notifier fans override changes out to open views.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]subscription
}

// NewNotifier creates a Notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]subscription)}
}

// Subscribe registers interest in cat, or in every category when cat is
// empty. The cancel func closes the channel and is safe to call twice.
func (n *Notifier) Subscribe(cat Category) (<-chan ChangeEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan ChangeEvent, 8)
	n.subs[id] = subscription{cat: cat, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev without blocking; a subscriber whose buffer is full
// misses the event.
func (n *Notifier) Publish(ev ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, sub := range n.subs {
		if sub.cat != "" && sub.cat != ev.Category {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Debugf("Dropping %s change event for slow subscriber %d", ev.Category, id)
		}
	}
}
