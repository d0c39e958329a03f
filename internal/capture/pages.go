package capture

import (
	"context"
	"sync"
)

// PageRef is one browser tab known to the episode: the initial tab or a
// popup adopted by the interceptor. Ctx is a chromedp context bound to the
// tab's target; Cancel detaches it and is invoked at episode teardown.
type PageRef struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// PageList tracks every tab opened during an episode so the harvester can
// enumerate them afterwards. Registration happens synchronously inside the
// popup event handler, so a short-lived popup is still recorded. The list is
// append-only for the life of the episode.
type PageList struct {
	mu    sync.Mutex
	pages []PageRef
}

// NewPageList returns an empty list.
func NewPageList() *PageList {
	return &PageList{}
}

// Add registers a tab. cancel may be nil for tabs whose lifecycle is owned
// elsewhere (the episode's primary tab).
func (l *PageList) Add(ctx context.Context, cancel context.CancelFunc) {
	l.mu.Lock()
	l.pages = append(l.pages, PageRef{Ctx: ctx, Cancel: cancel})
	l.mu.Unlock()
}

// Snapshot returns a copy of the registered tabs in registration order.
func (l *PageList) Snapshot() []PageRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PageRef, len(l.pages))
	copy(out, l.pages)
	return out
}

// Len returns the number of registered tabs.
func (l *PageList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pages)
}

// Close cancels every tab context that the list owns.
func (l *PageList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pages {
		if p.Cancel != nil {
			p.Cancel()
		}
	}
}
