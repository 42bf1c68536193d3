package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Every write pushes a fresh snapshot to
// the subscriptions it affects.
type MemoryStore struct {
	mu          sync.Mutex
	seq         int64
	collections map[string]map[string]*Document
	watchers    map[int64]*memoryWatcher
	nextWatcher int64
	writeErr    error

	now   func() time.Time
	newID func() string
}

type memoryWatcher struct {
	target   string
	document bool
	query    Query
	box      *Mailbox
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
		watchers:    make(map[int64]*memoryWatcher),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// SetClock replaces the clock used for create times.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWrites makes every following Add and Update fail with err until it is
// called again with nil.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// BreakSubscriptions delivers err to every subscription on target, which
// terminates them.
func (s *MemoryStore) BreakSubscriptions(target string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.watchers {
		if w.target == target {
			w.box.Fail(err)
			delete(s.watchers, id)
		}
	}
}

// Subscribers returns the number of open subscriptions on target.
func (s *MemoryStore) Subscribers(target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.watchers {
		if w.target == target {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Get(ctx context.Context, docPath string) (*Document, error) {
	collection, id, err := SplitDocumentPath(docPath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	d := doc.Clone()
	return &d, nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return "", common.Wrap(common.ErrValidation, "Invalid field value.", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return "", s.writeErr
	}

	s.seq++
	id := s.newID()
	doc := &Document{
		ID:         id,
		Path:       DocumentPath(collection, id),
		Fields:     normalized,
		CreateTime: s.now(),
		Seq:        s.seq,
	}

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*Document)
		s.collections[collection] = docs
	}
	docs[id] = doc

	s.notifyLocked(collection, doc.Path)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, docPath string, patch Patch) error {
	collection, id, err := SplitDocumentPath(docPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}

	doc, ok := s.collections[collection][id]
	if !ok {
		return common.ErrorNotFound
	}

	fields, err := patch.Apply(doc.Fields)
	if err != nil {
		return err
	}
	doc.Fields = fields

	s.notifyLocked(collection, docPath)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, q Query, fn SnapshotFunc) (Unsubscribe, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	return s.watch(ctx, &memoryWatcher{target: collection, query: q, box: NewMailbox(fn)}), nil
}

func (s *MemoryStore) SubscribeDocument(ctx context.Context, docPath string, fn SnapshotFunc) (Unsubscribe, error) {
	if !IsDocumentPath(docPath) {
		return nil, common.Validation("Invalid document path.")
	}
	return s.watch(ctx, &memoryWatcher{target: docPath, document: true, box: NewMailbox(fn)}), nil
}

func (s *MemoryStore) watch(ctx context.Context, w *memoryWatcher) Unsubscribe {
	s.mu.Lock()
	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = w
	w.box.Post(s.snapshotLocked(w))
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			w.box.Stop()
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-w.box.Done():
		}
	}()

	return unsubscribe
}

// notifyLocked pushes snapshots to subscriptions on the collection and on the
// written document. Posting under the lock keeps snapshot order consistent
// with write order.
func (s *MemoryStore) notifyLocked(collection, docPath string) {
	for _, w := range s.watchers {
		if w.target == collection || w.target == docPath {
			w.box.Post(s.snapshotLocked(w))
		}
	}
}

func (s *MemoryStore) snapshotLocked(w *memoryWatcher) *Snapshot {
	snap := &Snapshot{Target: w.target, ReadTime: s.now(), Docs: []Document{}}

	if w.document {
		collection, id, _ := SplitDocumentPath(w.target)
		if doc, ok := s.collections[collection][id]; ok {
			snap.Docs = append(snap.Docs, doc.Clone())
		}
		return snap
	}

	all := make([]Document, 0, len(s.collections[w.target]))
	for _, doc := range s.collections[w.target] {
		all = append(all, *doc)
	}
	for _, doc := range w.query.Apply(all) {
		snap.Docs = append(snap.Docs, doc.Clone())
	}
	return snap
}
