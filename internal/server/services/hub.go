package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/logging"
)

// Target is what a subscription watches: a collection restricted by Query,
// or the single document DocumentID of Collection.
type Target struct {
	Collection string
	Query      docstore.Query
	DocumentID string
}

// Path returns the collection or document path of t.
func (t Target) Path() string {
	if t.DocumentID != "" {
		return docstore.DocumentPath(t.Collection, t.DocumentID)
	}
	return t.Collection
}

// Loader materializes the current snapshot of t.
type Loader func(ctx context.Context, t Target) (*docstore.Snapshot, error)

// Hub fans collection change signals out to subscriptions. Every signal
// makes the affected subscriptions reload their state; signals arriving
// while a reload is running collapse into one more reload.
type Hub struct {
	load Loader
	log  logging.Logger

	mu       sync.Mutex
	watchers map[uint64]*hubWatcher
	next     uint64
}

type hubWatcher struct {
	target Target
	box    *docstore.Mailbox
	dirty  chan struct{}
}

func NewHub(load Loader, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{load: load, log: log, watchers: make(map[uint64]*hubWatcher)}
}

// Watch starts a subscription on t. The first snapshot is loaded right away.
func (h *Hub) Watch(ctx context.Context, t Target, fn docstore.SnapshotFunc) docstore.Unsubscribe {
	w := &hubWatcher{target: t, box: docstore.NewMailbox(fn), dirty: make(chan struct{}, 1)}
	w.dirty <- struct{}{}

	h.mu.Lock()
	h.next++
	id := h.next
	h.watchers[id] = w
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func(halt bool) {
		once.Do(func() {
			cancel()
			if halt {
				w.box.Stop()
			}
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}

	go h.run(ctx, w, stop)

	return func() {
		w.box.Stop()
		stop(true)
	}
}

func (h *Hub) run(ctx context.Context, w *hubWatcher, stop func(halt bool)) {
	for {
		select {
		case <-ctx.Done():
			stop(true)
			return
		case <-w.box.Done():
			stop(true)
			return
		case <-w.dirty:
		}

		snap, err := h.load(ctx, w.target)
		if ctx.Err() != nil {
			stop(true)
			return
		}
		if err != nil {
			h.log.Warn(ctx, "subscription failed", "target", w.target.Path(), "error", err)
			w.box.Fail(err)
			stop(false)
			return
		}
		w.box.Post(snap)
	}
}

// Changed marks every subscription on collection, or on one of its
// documents, for reload.
func (h *Hub) Changed(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if w.target.Collection == collection {
			w.mark()
		}
	}
}

// ChangedAll marks every subscription for reload, used after change signals
// may have been missed.
func (h *Hub) ChangedAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		w.mark()
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

func (w *hubWatcher) mark() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

func snapshotOf(t Target, docs []docstore.Document) *docstore.Snapshot {
	if docs == nil {
		docs = []docstore.Document{}
	}
	return &docstore.Snapshot{Target: t.Path(), Docs: docs, ReadTime: time.Now().UTC()}
}
