// Package liveview keeps a derived value in sync with a store subscription.
//
// A View owns at most one subscription at a time. Every pushed snapshot is
// run through the view's projection and published as a new Value. Changing
// the filter replaces the subscription and resets the view to Loading until
// the first snapshot under the new filter arrives. Snapshots delivered to a
// replaced or closed subscription are dropped.
package liveview

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/logging"
)

// State is the lifecycle state of a View.
type State int

const (
	Loading State = iota
	Ready
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Value is an immutable observation of a View. Data is only meaningful in
// the Ready state; Message holds user-facing text in the Failed state.
type Value[T any] struct {
	State   State
	Data    T
	Message string
	Err     error
}

// Projection derives the published data from a snapshot. An error moves the
// view to Failed; if it is a *common.Error its message is shown.
type Projection[T any] func(snap *docstore.Snapshot) (T, error)

// Target names what a view subscribes to.
type Target struct {
	Collection string
	Query      docstore.Query
	Document   string
}

// Collection targets a collection with a query.
func Collection(path string, q docstore.Query) Target {
	return Target{Collection: path, Query: q}
}

// Document targets a single document.
func Document(path string) Target {
	return Target{Document: path}
}

// DefaultErrorMessage is shown when the store reports a delivery error.
const DefaultErrorMessage = "Failed to load books."

type Option func(*options)

type options struct {
	errMessage string
	log        logging.Logger
}

// WithErrorMessage sets the text published when the subscription fails.
func WithErrorMessage(msg string) Option {
	return func(o *options) { o.errMessage = msg }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// View is a live, projected subscription.
type View[T any] struct {
	store   docstore.Store
	project Projection[T]
	opts    options
	ctx     context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	target      Target
	gen         uint64
	value       Value[T]
	seq         uint64
	unsub       docstore.Unsubscribe
	listeners   map[int]*listener[T]
	nextID      int
	dispatching bool
}

// listener remembers the seq of the last value it was given.
type listener[T any] struct {
	fn   func(Value[T])
	last uint64
}

// Open subscribes to target and returns a view in the Loading state. The
// view is closed when ctx is done.
func Open[T any](ctx context.Context, store docstore.Store, target Target, project Projection[T], opts ...Option) (*View[T], error) {
	o := options{errMessage: DefaultErrorMessage, log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	v := &View[T]{
		store:     store,
		project:   project,
		opts:      o,
		ctx:       ctx,
		cancel:    cancel,
		target:    target,
		value:     Value[T]{State: Loading},
		seq:       1,
		listeners: make(map[int]*listener[T]),
	}

	if err := v.subscribe(target, v.gen); err != nil {
		cancel()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		v.Close()
	}()
	return v, nil
}

// Current returns the latest value.
func (v *View[T]) Current() Value[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// OnChange registers fn, calls it with the current value and then with
// later values until the returned cancel func is called or the view is
// closed. Calls to listeners are serialized per view and always carry the
// value current at call time, so a listener never sees an older value after
// a newer one; intermediate values may be skipped. fn runs on whichever
// goroutine is dispatching (normally the store's delivery goroutine) and
// should not block. When no dispatch is in progress fn is first called
// before OnChange returns.
func (v *View[T]) OnChange(fn func(Value[T])) (cancel func()) {
	v.mu.Lock()
	if v.value.State == Closed {
		cur := v.value
		v.mu.Unlock()
		fn(cur)
		return func() {}
	}
	id := v.nextID
	v.nextID++
	v.listeners[id] = &listener[T]{fn: fn}
	v.mu.Unlock()

	v.dispatch()
	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// Filter returns the current collection filter.
func (v *View[T]) Filter() *docstore.Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.target.Query.Filter
}

// SetFilter resubscribes the collection under f. Setting the filter already
// in effect does nothing.
func (v *View[T]) SetFilter(f *docstore.Filter) error {
	v.mu.Lock()
	if v.value.State == Closed {
		v.mu.Unlock()
		return common.ErrClosed
	}
	if v.target.Document != "" {
		v.mu.Unlock()
		return common.Validation("A document view has no filter.")
	}
	if docstore.SameFilter(v.target.Query.Filter, f) {
		v.mu.Unlock()
		return nil
	}

	v.target.Query.Filter = f
	v.gen++
	gen, target := v.gen, v.target
	old := v.unsub
	v.unsub = nil
	var zero T
	v.publishLocked(Value[T]{State: Loading, Data: zero})
	v.mu.Unlock()

	if old != nil {
		old()
	}
	v.dispatch()

	v.opts.log.Debug(v.ctx, "view filter changed", "collection", target.Collection)
	return v.subscribe(target, gen)
}

// Close releases the subscription. Later snapshots are dropped and no
// listener is called again. Close may be called more than once.
func (v *View[T]) Close() {
	v.mu.Lock()
	if v.value.State == Closed {
		v.mu.Unlock()
		return
	}
	v.gen++
	v.publishLocked(Value[T]{State: Closed})
	old := v.unsub
	v.unsub = nil
	clear(v.listeners)
	v.mu.Unlock()

	if old != nil {
		old()
	}
	v.cancel()
}

func (v *View[T]) subscribe(target Target, gen uint64) error {
	fn := func(snap *docstore.Snapshot, err error) { v.deliver(gen, snap, err) }

	var (
		unsub docstore.Unsubscribe
		err   error
	)
	if target.Document != "" {
		unsub, err = v.store.SubscribeDocument(v.ctx, target.Document, fn)
	} else {
		unsub, err = v.store.Subscribe(v.ctx, target.Collection, target.Query, fn)
	}
	if err != nil {
		v.opts.log.Warn(v.ctx, "subscribe failed", "error", err)
		v.fail(gen, err)
		return common.Wrap(common.ErrRemoteRead, v.opts.errMessage, err)
	}

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		unsub()
		return nil
	}
	v.unsub = unsub
	v.mu.Unlock()
	return nil
}

func (v *View[T]) deliver(gen uint64, snap *docstore.Snapshot, err error) {
	if err != nil {
		v.opts.log.Warn(v.ctx, "subscription failed", "error", err)
		v.fail(gen, err)
		return
	}

	data, perr := v.project(snap)

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	if perr != nil {
		var zero T
		v.publishLocked(Value[T]{State: Failed, Data: zero, Message: v.messageFor(perr), Err: perr})
	} else {
		v.publishLocked(Value[T]{State: Ready, Data: data})
	}
	v.mu.Unlock()

	v.dispatch()
}

func (v *View[T]) fail(gen uint64, err error) {
	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	v.unsub = nil
	v.publishLocked(Value[T]{State: Failed, Message: v.messageFor(err), Err: err})
	v.mu.Unlock()

	v.dispatch()
}

func (v *View[T]) messageFor(err error) string {
	var ue *common.Error
	if errors.As(err, &ue) {
		return ue.Message
	}
	return v.opts.errMessage
}

func (v *View[T]) publishLocked(val Value[T]) {
	v.value = val
	v.seq++
}

// dispatch brings every listener up to the current value. Only one
// goroutine dispatches at a time; a value published meanwhile is picked up
// by the running dispatcher.
func (v *View[T]) dispatch() {
	v.mu.Lock()
	if v.dispatching {
		v.mu.Unlock()
		return
	}
	v.dispatching = true
	for {
		l := v.dueLocked()
		if l == nil {
			break
		}
		l.last = v.seq
		val := v.value
		v.mu.Unlock()

		l.fn(val)

		v.mu.Lock()
	}
	v.dispatching = false
	v.mu.Unlock()
}

func (v *View[T]) dueLocked() *listener[T] {
	for _, l := range v.listeners {
		if l.last < v.seq {
			return l
		}
	}
	return nil
}
