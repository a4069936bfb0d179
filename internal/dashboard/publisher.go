package dashboard

import (
	"sync"
)

// Publisher holds the latest frame and fans it out to subscribers. The
// render loop publishes; HTTP handlers read. A slow subscriber misses
// frames rather than blocking the render loop.
type Publisher struct {
	mu     sync.RWMutex
	latest Frame
	has    bool
	subs   map[chan Frame]struct{}
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[chan Frame]struct{})}
}

// Publish replaces the latest frame and offers it to every subscriber.
func (p *Publisher) Publish(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = f
	p.has = true
	for ch := range p.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// Latest returns the last published frame.
func (p *Publisher) Latest() (Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.has
}

// Subscribe returns a channel of frames and a function that cancels the
// subscription and closes the channel.
func (p *Publisher) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}
