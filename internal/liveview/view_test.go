package liveview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(snap *docstore.Snapshot) ([]string, error) {
	out := make([]string, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		s, _ := d.Fields["title"].(string)
		out = append(out, s)
	}
	return out, nil
}

func waitFor[T any](t *testing.T, v *View[T], cond func(Value[T]) bool) Value[T] {
	t.Helper()
	var got Value[T]
	require.Eventually(t, func() bool {
		got = v.Current()
		return cond(got)
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func ready[T any](val Value[T]) bool { return val.State == Ready }

func TestView_ProjectsPushedSnapshots(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)
	defer v.Close()

	got := waitFor(t, v, ready[[]string])
	assert.Empty(t, got.Data)

	_, err = store.Add(ctx, "books", docstore.Fields{"title": "Dune"})
	require.NoError(t, err)

	got = waitFor(t, v, func(val Value[[]string]) bool { return len(val.Data) == 1 })
	assert.Equal(t, []string{"Dune"}, got.Data)
}

func TestView_SetFilterResubscribes(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	for _, b := range []docstore.Fields{
		{"title": "Love", "category": "Romance"},
		{"title": "Fear", "category": "Horror"},
	} {
		_, err := store.Add(ctx, "books", b)
		require.NoError(t, err)
	}

	v, err := Open(ctx, store, Collection("books", docstore.Query{Filter: docstore.Where("category", "Romance")}), titles)
	require.NoError(t, err)
	defer v.Close()

	got := waitFor(t, v, ready[[]string])
	assert.Equal(t, []string{"Love"}, got.Data)

	for range 20 {
		require.NoError(t, v.SetFilter(docstore.Where("category", "Horror")))
		require.NoError(t, v.SetFilter(docstore.Where("category", "Romance")))
	}
	require.NoError(t, v.SetFilter(docstore.Where("category", "Horror")))

	got = waitFor(t, v, ready[[]string])
	assert.Equal(t, []string{"Fear"}, got.Data)
	assert.Equal(t, 1, store.Subscribers("books"))
	assert.Equal(t, "Horror", v.Filter().Value)
}

func TestView_SetFilterSwapsToLoading(t *testing.T) {
	ctx := context.Background()
	store := &manualStore{}

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)
	defer v.Close()

	store.push(0, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "A"}}}})
	require.Equal(t, Ready, v.Current().State)

	require.NoError(t, v.SetFilter(docstore.Where("category", "Horror")))
	cur := v.Current()
	assert.Equal(t, Loading, cur.State)
	assert.Nil(t, cur.Data)
	assert.True(t, store.released(0))

	store.push(0, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "stale"}}}})
	assert.Equal(t, Loading, v.Current().State)

	store.push(1, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "B"}}}})
	assert.Equal(t, []string{"B"}, v.Current().Data)
}

func TestView_SameFilterIsNoop(t *testing.T) {
	ctx := context.Background()
	store := &manualStore{}

	v, err := Open(ctx, store, Collection("books", docstore.Query{Filter: docstore.Where("category", "Horror")}), titles)
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.SetFilter(docstore.Where("category", "Horror")))
	assert.Equal(t, 1, store.count())
}

func TestView_LateSnapshotAfterCloseIsDropped(t *testing.T) {
	ctx := context.Background()
	store := &manualStore{}

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	v.OnChange(func(Value[[]string]) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	v.Close()
	v.Close()
	assert.True(t, store.released(0))

	store.push(0, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "late"}}}})
	store.fail(0, errors.New("late error"))

	assert.Equal(t, Value[[]string]{State: Closed}, v.Current())
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	require.ErrorIs(t, v.SetFilter(docstore.Where("category", "x")), common.ErrClosed)
}

func TestView_DeliveryErrorClearsData(t *testing.T) {
	ctx := context.Background()
	store := &manualStore{}

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)
	defer v.Close()

	store.push(0, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "A"}}}})
	store.fail(0, errors.New("permission-denied: raw backend text"))

	cur := v.Current()
	assert.Equal(t, Failed, cur.State)
	assert.Equal(t, DefaultErrorMessage, cur.Message)
	assert.Nil(t, cur.Data)
}

func TestView_ProjectionErrorMessage(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	project := func(snap *docstore.Snapshot) (string, error) {
		doc, ok := snap.Document()
		if !ok {
			return "", common.Wrap(common.ErrNotFound, "Book not found.", nil)
		}
		return doc.ID, nil
	}

	v, err := Open(ctx, store, Document("books/missing"), project, WithErrorMessage("Failed to load book data."))
	require.NoError(t, err)
	defer v.Close()

	got := waitFor(t, v, func(val Value[string]) bool { return val.State == Failed })
	assert.Equal(t, "Book not found.", got.Message)
	assert.ErrorIs(t, got.Err, common.ErrNotFound)

	require.Error(t, v.SetFilter(nil))
}

func TestView_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := docstore.NewMemoryStore()

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)

	cancel()
	waitFor(t, v, func(val Value[[]string]) bool { return val.State == Closed })
	require.Eventually(t, func() bool { return store.Subscribers("books") == 0 }, time.Second, 5*time.Millisecond)
}

func TestView_OpenInvalidTarget(t *testing.T) {
	_, err := Open(context.Background(), docstore.NewMemoryStore(), Collection("books/b1", docstore.Query{}), titles)
	require.ErrorIs(t, err, common.ErrValidation)
}

// manualStore records subscriptions so tests can deliver snapshots by hand,
// synchronously, including to subscriptions that were already released.
type manualStore struct {
	docstore.Store

	mu   sync.Mutex
	subs []*manualSub
}

type manualSub struct {
	fn       docstore.SnapshotFunc
	released bool
}

func (m *manualStore) Subscribe(_ context.Context, _ string, _ docstore.Query, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	return m.add(fn), nil
}

func (m *manualStore) SubscribeDocument(_ context.Context, _ string, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	return m.add(fn), nil
}

func (m *manualStore) add(fn docstore.SnapshotFunc) docstore.Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &manualSub{fn: fn}
	m.subs = append(m.subs, s)
	return func() {
		m.mu.Lock()
		s.released = true
		m.mu.Unlock()
	}
}

func (m *manualStore) sub(i int) *manualSub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[i]
}

func (m *manualStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *manualStore) released(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[i].released
}

func (m *manualStore) push(i int, snap *docstore.Snapshot) { m.sub(i).fn(snap, nil) }

func (m *manualStore) fail(i int, err error) { m.sub(i).fn(nil, err) }

type recorder struct {
	mu   sync.Mutex
	seen []State
}

func (r *recorder) add(val Value[[]string]) {
	r.mu.Lock()
	r.seen = append(r.seen, val.State)
	r.mu.Unlock()
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.seen...)
}

func TestView_SlowListenerNeverSeesValueSupersededByFilter(t *testing.T) {
	ctx := context.Background()
	store := &manualStore{}

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)
	defer v.Close()

	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	var a, b recorder
	v.OnChange(func(val Value[[]string]) {
		if val.State == Ready {
			once.Do(func() {
				close(entered)
				<-gate
			})
		}
		a.add(val)
	})
	v.OnChange(b.add)

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		store.push(0, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "old"}}}})
	}()
	<-entered

	require.NoError(t, v.SetFilter(docstore.Where("category", "Horror")))
	assert.Equal(t, Loading, v.Current().State)
	close(gate)
	<-pushed

	for _, r := range []*recorder{&a, &b} {
		states := r.states()
		require.NotEmpty(t, states)
		assert.Equal(t, Loading, states[len(states)-1], "states %v", states)
	}
	assert.Equal(t, Loading, v.Current().State)

	store.push(1, &docstore.Snapshot{Docs: []docstore.Document{{Fields: docstore.Fields{"title": "new"}}}})
	for _, r := range []*recorder{&a, &b} {
		states := r.states()
		assert.Equal(t, Ready, states[len(states)-1])
	}
}

func TestView_OnChangeFromListenerIsServed(t *testing.T) {
	ctx := context.Background()
	store := &manualStore{}

	v, err := Open(ctx, store, Collection("books", docstore.Query{}), titles)
	require.NoError(t, err)
	defer v.Close()

	var inner recorder
	var once sync.Once
	v.OnChange(func(Value[[]string]) {
		once.Do(func() { v.OnChange(inner.add) })
	})

	assert.Equal(t, []State{Loading}, inner.states())
}
