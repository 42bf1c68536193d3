package docstore

import "sync"

// Mailbox delivers the snapshots of one subscription on its own goroutine.
// Posting never blocks the writer: when the consumer is slow, a newer
// snapshot replaces the one still waiting, so the consumer may skip
// intermediate states but never observes them out of order.
type Mailbox struct {
	fn SnapshotFunc

	mu      sync.Mutex
	pending *Snapshot
	err     error
	has     bool
	final   bool

	signal   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMailbox starts a delivery goroutine calling fn.
func NewMailbox(fn SnapshotFunc) *Mailbox {
	m := &Mailbox{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Post queues snap for delivery, replacing a snapshot not yet delivered.
func (m *Mailbox) Post(snap *Snapshot) {
	m.mu.Lock()
	if m.final {
		m.mu.Unlock()
		return
	}
	m.pending, m.err, m.has = snap, nil, true
	m.mu.Unlock()
	m.wake()
}

// Fail queues a terminal error. Later posts are ignored.
func (m *Mailbox) Fail(err error) {
	m.mu.Lock()
	if m.final {
		m.mu.Unlock()
		return
	}
	m.pending, m.err, m.has, m.final = nil, err, true, true
	m.mu.Unlock()
	m.wake()
}

// Stop ends delivery. A callback already running is allowed to finish; no
// callback starts afterwards.
func (m *Mailbox) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// Done is closed once Stop has been called.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

func (m *Mailbox) stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}

		m.mu.Lock()
		snap, err, has := m.pending, m.err, m.has
		m.pending, m.err, m.has = nil, nil, false
		m.mu.Unlock()

		if !has || m.stopped() {
			continue
		}

		m.fn(snap, err)
		if err != nil {
			m.Stop()
			return
		}
	}
}
