package monitor

import "sync"

// Event is one broadcastable occurrence on the FDC session: a
// completed request, translated from fdc.Event into something safe to
// serialize and show to a remote observer.
type Event struct {
	Command     string `json:"command"`
	SectorIndex int    `json:"sectorIndex"`
	Status      string `json:"status"`
}

// Broadcaster fans out Events to every subscribed WebSocket client.
// Grounded on the teacher's api.Broadcaster, simplified: this session
// has exactly one FDC engine, so there is no per-session filtering.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[chan Event]bool
	broadcast     chan Event
	register      chan chan Event
	unregister    chan chan Event
	done          chan struct{}
}

// NewBroadcaster creates and starts a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscriptions: make(map[chan Event]bool),
		broadcast:     make(chan Event, 256),
		register:      make(chan chan Event),
		unregister:    make(chan chan Event),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case ch := <-b.register:
			b.mu.Lock()
			b.subscriptions[ch] = true
			b.mu.Unlock()

		case ch := <-b.unregister:
			b.mu.Lock()
			if b.subscriptions[ch] {
				delete(b.subscriptions, ch)
				close(ch)
			}
			b.mu.Unlock()

		case ev := <-b.broadcast:
			b.mu.RLock()
			for ch := range b.subscriptions {
				select {
				case ch <- ev:
				default:
					// slow client, drop this event rather than block the broadcaster
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			b.mu.Lock()
			for ch := range b.subscriptions {
				close(ch)
			}
			b.subscriptions = make(map[chan Event]bool)
			b.mu.Unlock()
			return
		}
	}
}

// Subscribe returns a channel that receives every Event broadcast from
// this point on.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.register <- ch
	return ch
}

// Unsubscribe removes and closes a previously subscribed channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.unregister <- ch
}

// Publish sends an event to every subscriber. Non-blocking: if the
// broadcaster's internal queue is full, the event is dropped.
func (b *Broadcaster) Publish(ev Event) {
	select {
	case b.broadcast <- ev:
	default:
	}
}

// Close shuts down the broadcaster and closes all subscriptions.
func (b *Broadcaster) Close() {
	close(b.done)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
