package offline

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MessageType names a control-channel message.
type MessageType string

const (
	MsgSkipWaiting MessageType = "SKIP_WAITING"
	MsgGetVersion  MessageType = "GET_VERSION"
	MsgCheckUpdate MessageType = "CHECK_UPDATE"
	MsgUpdated     MessageType = "SW_UPDATED"
)

// Message travels between pages and the cache worker, in either direction.
type Message struct {
	Type    MessageType `json:"type"`
	Version string      `json:"version,omitempty"`
}

// Reply answers a control message.
type Reply struct {
	Type           MessageType `json:"type"`
	Version        string      `json:"version,omitempty"`
	State          State       `json:"state"`
	Caches         []string    `json:"caches,omitempty"`
	Entries        int         `json:"entries,omitempty"`
	UpdateWaiting  bool        `json:"updateWaiting"`
	WaitingVersion string      `json:"waitingVersion,omitempty"`
}

const clientBuffer = 4

// Clients tracks connected pages and fans broadcasts out to them.
type Clients struct {
	mu         sync.Mutex
	subs       map[string]chan Message
	controller string
}

// NewClients creates an empty registry.
func NewClients() *Clients {
	return &Clients{subs: make(map[string]chan Message)}
}

// Connect registers a page. The returned cancel func is idempotent and
// closes the channel.
func (c *Clients) Connect() (string, <-chan Message, func()) {
	id := uuid.NewString()
	ch := make(chan Message, clientBuffer)

	c.mu.Lock()
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

// Broadcast delivers msg to every connected page without blocking and
// returns how many received it.
func (c *Clients) Broadcast(msg Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	delivered := 0
	for id, ch := range c.subs {
		select {
		case ch <- msg:
			delivered++
		default:
			log.Debugf("Client %s is not draining messages, dropped %s", id, msg.Type)
		}
	}
	return delivered
}

// Claim makes version the controller of every current and future page.
func (c *Clients) Claim(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = version
}

// Controller is the version that last claimed the pages.
func (c *Clients) Controller() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

// Count is the number of connected pages.
func (c *Clients) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
