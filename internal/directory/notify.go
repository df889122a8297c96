package directory

import (
	"sync"
)

type subCh = chan string // carries new ETags

// notifier fans snapshot changes out to subscribers.
type notifier struct {
	mu   sync.Mutex
	subs map[subCh]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[subCh]struct{})}
}

// subscribe registers a listener and returns its channel and an unsubscribe func.
// Unsubscribing more than once is a no-op.
func (n *notifier) subscribe() (<-chan string, func()) {
	ch := make(subCh, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			close(ch)
			n.mu.Unlock()
		})
	}
	return ch, unsub
}

// publish notifies all listeners without blocking; a slow listener misses
// intermediate ETags but always sees a later one.
func (n *notifier) publish(etag string) {
	n.mu.Lock()
	for ch := range n.subs {
		select {
		case ch <- etag:
		default:
		}
	}
	n.mu.Unlock()
}
