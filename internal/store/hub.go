package store

import (
	"context"
	"sync"

	"github.com/mathclub/ideaboard/internal/model"
)

// LoadFunc reads the current content of a collection.
type LoadFunc func(ctx context.Context) ([]model.Document, error)

// Hub fans collection changes out to subscribers. Backends call Publish after
// each write (or when their database reports a change) and every subscriber
// of that collection reloads it.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	notify chan struct{}
	done   chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe starts a live query on collectionPath. Notifications that arrive
// while a snapshot is still waiting to be read are coalesced into one reload.
func (h *Hub) Subscribe(ctx context.Context, collectionPath string, load LoadFunc) (<-chan Snapshot, error) {
	sub := &subscriber{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	sub.notify <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[collectionPath] == nil {
		h.subs[collectionPath] = make(map[*subscriber]struct{})
	}
	h.subs[collectionPath][sub] = struct{}{}
	h.mu.Unlock()

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer h.remove(collectionPath, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case <-sub.notify:
			}
			docs, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot{Docs: docs, Err: err}:
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out, nil
}

// Publish marks collectionPath as changed.
func (h *Hub) Publish(collectionPath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[collectionPath] {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports how many live queries watch collectionPath.
func (h *Hub) Subscribers(collectionPath string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collectionPath])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			close(sub.done)
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
}

func (h *Hub) remove(collectionPath string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[collectionPath]
	if subs == nil {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, collectionPath)
	}
}
