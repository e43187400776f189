package assistant

import "sync"

// lanes serializes work per conversation. A lane exists only while some
// turn holds or waits for it.
type lanes struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

func newLanes() *lanes {
	return &lanes{lanes: make(map[string]*lane)}
}

// run executes fn while holding the conversation's lane.
func (l *lanes) run(conversationID string, fn func()) {
	ln := l.acquire(conversationID)
	defer l.release(conversationID, ln)

	ln.mu.Lock()
	defer ln.mu.Unlock()
	fn()
}

func (l *lanes) acquire(conversationID string) *lane {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.lanes[conversationID]
	if !ok {
		ln = &lane{}
		l.lanes[conversationID] = ln
	}
	ln.refs++
	return ln
}

func (l *lanes) release(conversationID string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, conversationID)
	}
}

// active returns the number of conversations with a held or awaited lane.
func (l *lanes) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
