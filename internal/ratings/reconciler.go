// Package ratings replaces a user's rating on a book.
//
// A submission is two sequential store writes: remove the user's previous
// entries, then append the new one. Nothing guards the read-modify-write, so
// two clients submitting for the same user at once may both append and leave
// two entries behind; the next submission by that user removes both.
package ratings

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/models"
)

const (
	MinScore = 1
	MaxScore = 5
)

// State is the reconciler's submission state.
type State int

const (
	Idle State = iota
	Submitting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Reconciler submits ratings for one client. It allows one submission in
// flight at a time.
type Reconciler struct {
	store docstore.Store
	log   logging.Logger

	mu      sync.Mutex
	state   State
	pending int
	err     error
}

func New(store docstore.Store, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{store: store, log: log.With("module", "ratings")}
}

// State returns the current state and, when Failed, the surfaced error.
func (r *Reconciler) State() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.err
}

// Pending is the score of the last submission that did not succeed, or 0.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Dismiss acknowledges a failure and returns to Idle. The pending score is
// kept for a retry.
func (r *Reconciler) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Failed {
		r.state, r.err = Idle, nil
	}
}

// Submit sets user's rating on book to score. book.Ratings is used as the
// current array when non-nil, otherwise the book is read from the store.
func (r *Reconciler) Submit(ctx context.Context, book models.Book, user *models.User, score int) error {
	identity := user.Identity()
	if identity == "" {
		return common.Validation("You must be logged in to rate.")
	}
	if score < MinScore || score > MaxScore {
		return common.Validation("Rating must be between 1 and 5.")
	}

	r.mu.Lock()
	if r.state == Submitting {
		r.mu.Unlock()
		return common.Validation("A rating is already being submitted.")
	}
	r.state, r.err, r.pending = Submitting, nil, score
	r.mu.Unlock()

	err := r.submit(ctx, book, identity, score)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state, r.err = Failed, err
		return err
	}
	r.state, r.pending = Idle, 0
	return nil
}

func (r *Reconciler) submit(ctx context.Context, book models.Book, identity string, score int) error {
	path := docstore.BookPath(book.ID)

	current := book.Ratings
	if current == nil {
		doc, err := r.store.Get(ctx, path)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.Wrap(common.ErrNotFound, "Book not found.", err)
			}
			r.log.Error(ctx, "read ratings failed", "book", book.ID, "error", err)
			return common.Wrap(common.ErrRemoteRead, "Failed to load book data.", err)
		}
		current = models.RatingsFromValue(doc.Fields[models.FieldRatings])
	}

	if remove := RemovePatch(current, identity); remove != nil {
		if err := r.store.Update(ctx, path, remove); err != nil {
			r.log.Error(ctx, "remove previous rating failed", "book", book.ID, "error", err)
			return r.writeError(err)
		}
	}

	next := models.Rating{User: identity, Score: score}
	if err := r.store.Update(ctx, path, docstore.Patch{docstore.ArrayUnion(models.FieldRatings, models.RatingValue(next))}); err != nil {
		r.log.Error(ctx, "append rating failed", "book", book.ID, "error", err)
		return r.writeError(err)
	}

	r.log.Debug(ctx, "rating submitted", "book", book.ID, "score", score)
	return nil
}

func (r *Reconciler) writeError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.Wrap(common.ErrNotFound, "Book not found.", err)
	}
	if errors.Is(err, common.ErrorUnauthorized) {
		return common.Wrap(common.ErrValidation, "You must be logged in to rate.", err)
	}
	return common.Wrap(common.ErrRemoteWrite, "Failed to submit rating.", err)
}

// RemovePatch removes every entry held for identity, or returns nil when
// there is none.
func RemovePatch(current []models.Rating, identity string) docstore.Patch {
	var p docstore.Patch
	seen := map[int]bool{}
	for _, rt := range current {
		if rt.User != identity || seen[rt.Score] {
			continue
		}
		seen[rt.Score] = true
		p = append(p, docstore.ArrayRemove(models.FieldRatings, models.RatingValue(rt)))
	}
	return p
}

// Replace is the array the store holds after a successful submission:
// current without identity's entries, followed by the new rating.
func Replace(current []models.Rating, identity string, score int) []models.Rating {
	out := make([]models.Rating, 0, len(current)+1)
	for _, rt := range current {
		if rt.User != identity {
			out = append(out, rt)
		}
	}
	return append(out, models.Rating{User: identity, Score: score})
}
